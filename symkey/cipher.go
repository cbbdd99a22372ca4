// Copyright (C) 2025 ptptl-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package symkey

import (
	"bytes"
	"crypto/cipher"
	"crypto/sha1"
	"fmt"
	"io"

	"golang.org/x/crypto/blowfish"

	"github.com/ahenroid/ptptl-0.2/prand"
)

func (k *Key) newStream(iv []byte) (cipher.Stream, error) {
	block, err := blowfish.NewCipher(k.bytes)
	if err != nil {
		return nil, fmt.Errorf("symkey: blowfish key: %w", err)
	}
	return cipher.NewOFB(block, iv), nil
}

// EncryptedLen returns the exact ciphertext length Encrypt will produce
// for plainLen plaintext bytes under the given flags.
func EncryptedLen(plainLen int, useIV, useDigest bool) int {
	n := plainLen
	if useIV {
		n += IVSize
	}
	if useDigest {
		n += DigestSize
	}
	return n
}

// Encrypt produces [IV?][Cipher(plaintext)][Cipher(SHA1(plaintext))?],
// spec.md §4.D's buffer layout. IV bytes are fresh random on every call.
func (k *Key) Encrypt(plaintext []byte, useIV, useDigest bool) ([]byte, error) {
	iv := make([]byte, IVSize)
	if useIV {
		if err := prand.Fill(iv); err != nil {
			return nil, err
		}
	}

	stream, err := k.newStream(iv)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, EncryptedLen(len(plaintext), useIV, useDigest))
	if useIV {
		out = append(out, iv...)
	}

	cipherText := make([]byte, len(plaintext))
	stream.XORKeyStream(cipherText, plaintext)
	out = append(out, cipherText...)

	if useDigest {
		sum := sha1.Sum(plaintext)
		cipherDigest := make([]byte, DigestSize)
		stream.XORKeyStream(cipherDigest, sum[:])
		out = append(out, cipherDigest...)
	}

	return out, nil
}

// Decrypt reverses Encrypt's layout. It returns an error if the trailing
// digest does not match (when useDigest is set) or if data is too short
// for the advertised layout.
func (k *Key) Decrypt(data []byte, useIV, useDigest bool) ([]byte, error) {
	minLen := 0
	if useIV {
		minLen += IVSize
	}
	if useDigest {
		minLen += DigestSize
	}
	if len(data) < minLen {
		return nil, ErrTailTooShort
	}

	iv := make([]byte, IVSize)
	rest := data
	if useIV {
		copy(iv, data[:IVSize])
		rest = data[IVSize:]
	}

	stream, err := k.newStream(iv)
	if err != nil {
		return nil, err
	}

	plainLen := len(rest)
	var cipherDigest []byte
	if useDigest {
		plainLen -= DigestSize
		cipherDigest = rest[plainLen:]
	}
	cipherText := rest[:plainLen]

	plaintext := make([]byte, plainLen)
	stream.XORKeyStream(plaintext, cipherText)

	if useDigest {
		digest := make([]byte, DigestSize)
		stream.XORKeyStream(digest, cipherDigest)
		sum := sha1.Sum(plaintext)
		if !bytes.Equal(sum[:], digest) {
			return nil, ErrDigestMismatch
		}
	}

	return plaintext, nil
}

// Transfer is a plain copy from r to w, used for the non-encrypted
// transfer path (spec.md §4.D "Transfer").
func Transfer(w io.Writer, r io.Reader) (int64, error) {
	if r == nil {
		return 0, ErrNilReader
	}
	if w == nil {
		return 0, ErrNilWriter
	}
	return io.Copy(w, r)
}

// EncryptStream streams plaintext from r to w, writing
// [IV?][Cipher(stream)][Cipher(SHA1(stream))?]. It returns the number of
// plaintext bytes consumed from r.
func (k *Key) EncryptStream(w io.Writer, r io.Reader, useIV, useDigest bool) (int64, error) {
	if r == nil {
		return 0, ErrNilReader
	}
	if w == nil {
		return 0, ErrNilWriter
	}

	iv := make([]byte, IVSize)
	if useIV {
		if err := prand.Fill(iv); err != nil {
			return 0, err
		}
		if _, err := w.Write(iv); err != nil {
			return 0, err
		}
	}

	stream, err := k.newStream(iv)
	if err != nil {
		return 0, err
	}

	sw := &cipher.StreamWriter{S: stream, W: w}

	var hasher = sha1.New()
	var src io.Reader = r
	if useDigest {
		src = io.TeeReader(r, hasher)
	}

	n, err := io.Copy(sw, src)
	if err != nil {
		return n, err
	}

	if useDigest {
		sum := hasher.Sum(nil)
		if _, err := sw.Write(sum); err != nil {
			return n, err
		}
	}

	return n, nil
}

// streamChunkSize is the read granularity DecryptStream uses internally;
// it has no bearing on correctness, only on how often the sliding buffer
// is trimmed.
const streamChunkSize = 4096

// DecryptStream reverses EncryptStream. Because the digest (when present)
// is appended and the stream length is not known in advance, it keeps the
// last 2×DigestSize decrypted bytes buffered and only releases bytes to w
// once it has confirmed more data follows — spec.md §4.D's streaming
// decrypt contract. On EOF the buffered tail is split into trailing
// plaintext (written to w) and the trailing digest, which must match
// SHA1 of everything written; a mismatch is reported even though every
// plaintext byte was already delivered to w.
func (k *Key) DecryptStream(w io.Writer, r io.Reader, useIV, useDigest bool) (int64, error) {
	if r == nil {
		return 0, ErrNilReader
	}
	if w == nil {
		return 0, ErrNilWriter
	}

	iv := make([]byte, IVSize)
	if useIV {
		if _, err := io.ReadFull(r, iv); err != nil {
			return 0, fmt.Errorf("symkey: reading IV: %w", err)
		}
	}

	stream, err := k.newStream(iv)
	if err != nil {
		return 0, err
	}
	sr := &cipher.StreamReader{S: stream, R: r}

	if !useDigest {
		return io.Copy(w, sr)
	}

	hasher := sha1.New()
	var total int64
	margin := 2 * DigestSize
	var buf []byte
	chunk := make([]byte, streamChunkSize)

	for {
		n, rerr := sr.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if len(buf) > margin {
				flush := buf[:len(buf)-margin]
				hasher.Write(flush)
				if _, werr := w.Write(flush); werr != nil {
					return total, werr
				}
				total += int64(len(flush))
				buf = append([]byte(nil), buf[len(buf)-margin:]...)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return total, rerr
		}
	}

	if len(buf) < DigestSize {
		return total, ErrTailTooShort
	}

	trailingPlain := buf[:len(buf)-DigestSize]
	trailingDigest := buf[len(buf)-DigestSize:]

	hasher.Write(trailingPlain)
	if _, werr := w.Write(trailingPlain); werr != nil {
		return total, werr
	}
	total += int64(len(trailingPlain))

	sum := hasher.Sum(nil)
	if !bytes.Equal(sum, trailingDigest) {
		return total, ErrDigestMismatch
	}
	return total, nil
}
