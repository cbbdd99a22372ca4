package bytesutil

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64RoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 2, 3, 4, 17, 255, 1024} {
		src := make([]byte, size)
		_, err := rand.Read(src)
		require.NoError(t, err)

		for _, bpl := range []int{1, 2, 3, 4, 7, 64, 76} {
			encLen := Base64Encode(src, bpl, nil)
			enc := make([]byte, encLen)
			n := Base64Encode(src, bpl, enc)
			assert.Equal(t, encLen, n)

			decLen := Base64Decode(enc, nil)
			dec := make([]byte, decLen)
			m := Base64Decode(enc, dec)
			assert.Equal(t, decLen, m)
			assert.Equal(t, src, dec, "size=%d bpl=%d", size, bpl)
		}
	}
}

func TestBase64LenientDecodeSkipsGarbage(t *testing.T) {
	src := []byte("hello, ptptl")
	enc := make([]byte, Base64Encode(src, 4, nil))
	Base64Encode(src, 4, enc)

	noisy := append([]byte(" \t\r\n!@#$%^&*()"), enc...)
	noisy = append(noisy, []byte("\n\n   ~~~ !!! ###===")...)

	dec := make([]byte, Base64Decode(noisy, nil))
	Base64Decode(noisy, dec)
	assert.Equal(t, src, dec)
}

func TestPackUnpack(t *testing.T) {
	b16 := make([]byte, 2)
	PutUint16(b16, 0xBEEF)
	assert.Equal(t, uint16(0xBEEF), Uint16(b16))

	b32 := make([]byte, 4)
	PutUint32(b32, 0xCAFEBABE)
	assert.Equal(t, uint32(0xCAFEBABE), Uint32(b32))
}
