package overlay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahenroid/ptptl-0.2/symkey"
)

func TestPacketEncodeDecodeRoundTrip(t *testing.T) {
	pkt := NewSearchPacket(EncodeSearchPayload(10, "hello"))
	wire := pkt.Encode()

	h, err := DecodeHeader(wire[:HeaderSize])
	require.NoError(t, err)
	assert.Equal(t, pkt.Header.GUID, h.GUID)
	assert.Equal(t, TypeSearch, h.Type)
	assert.Equal(t, byte(DefaultTTL), h.TTL)
	assert.Equal(t, byte(0), h.Hops)
	assert.Equal(t, uint32(len(pkt.Payload)), h.PayLen)
}

func TestReadWritePacketRoundTrip(t *testing.T) {
	var buf fakeBuffer
	pkt := NewSearchPacket(EncodeSearchPayload(5, "movie"))
	require.NoError(t, WritePacket(&buf, pkt))

	got, err := ReadPacket(&buf)
	require.NoError(t, err)
	assert.Equal(t, pkt.Header, got.Header)
	assert.Equal(t, pkt.Payload, got.Payload)
}

func TestSearchPayloadRoundTrip(t *testing.T) {
	payload := EncodeSearchPayload(42, "report.pdf")
	speed, query, err := DecodeSearchPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), speed)
	assert.Equal(t, "report.pdf", query)
}

func TestSecureQueryRoundTrip(t *testing.T) {
	key, err := symkey.Generate()
	require.NoError(t, err)

	wire, err := SecureQuery("friends", "budget.xlsx", key)
	require.NoError(t, err)

	group, payload, ok := ParseSecureQuery(wire)
	require.True(t, ok)
	assert.Equal(t, "friends", group)

	plain, err := DecryptSecureQuery(payload, key)
	require.NoError(t, err)
	assert.Equal(t, "budget.xlsx", plain)
}

func TestParseSecureQueryRejectsPlainQuery(t *testing.T) {
	_, _, ok := ParseSecureQuery("plain-search-term")
	assert.False(t, ok)
}

func TestSearchReplyPayloadRoundTripPlain(t *testing.T) {
	entries := []ReplyEntry{
		{Ref: 1, Size: 1024, Name: "a.txt"},
		{Ref: 2, Size: 2048, Name: "b.txt"},
	}
	trailer := NewGUID()

	payload, err := BuildSearchReplyPayload(6346, 0x0100007f, 0, entries, trailer, nil)
	require.NoError(t, err)

	port, ip, speed, got, gotTrailer, err := ParseSearchReplyPayload(payload, nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(6346), port)
	assert.Equal(t, uint32(0x0100007f), ip)
	assert.Equal(t, uint32(0), speed)
	assert.Equal(t, entries, got)
	assert.Equal(t, trailer, gotTrailer)
}

func TestSearchReplyPayloadRoundTripSecure(t *testing.T) {
	key, err := symkey.Generate()
	require.NoError(t, err)

	entries := []ReplyEntry{{Ref: 7, Size: 99, Name: "key"}}
	trailer := NewGUID()

	payload, err := BuildSearchReplyPayload(80, 1, 0, entries, trailer, key)
	require.NoError(t, err)

	// Decrypting with the wrong key must fail.
	wrong, err := symkey.Generate()
	require.NoError(t, err)
	_, _, _, _, _, err = ParseSearchReplyPayload(payload, wrong)
	assert.Error(t, err)

	_, _, _, got, _, err := ParseSearchReplyPayload(payload, key)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestSearchesTableAddLookupStop(t *testing.T) {
	s := NewSearches()
	guid := NewGUID()
	var hits []FileHandle
	s.Add(guid, func(h FileHandle) { hits = append(hits, h) }, "ctx", "grp")

	cb, group, ok := s.Lookup(guid)
	require.True(t, ok)
	assert.Equal(t, "grp", group)
	cb(FileHandle{Name: "x"})
	assert.Len(t, hits, 1)

	assert.Equal(t, 1, s.Stop("ctx"))
	_, _, ok = s.Lookup(guid)
	assert.False(t, ok)
}

func TestGetPathRoundTrip(t *testing.T) {
	path := FormatGetPath(12, "song.mp3")
	ref, name, err := ParseGetPath(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), ref)
	assert.Equal(t, "song.mp3", name)
}

func TestGroupGetPathRoundTrip(t *testing.T) {
	path := FormatGroupGetPath("friends", 255)
	group, ref, err := ParseGroupGetPath(path)
	require.NoError(t, err)
	assert.Equal(t, "friends", group)
	assert.Equal(t, uint32(255), ref)
}

func TestWireIPRoundTrip(t *testing.T) {
	wire, err := HostToWireIP("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", WireIPToHost(wire))
}

func TestJoinGroupCreatesWhenNoReplyArrives(t *testing.T) {
	groups := NewGroups()
	var publishedName string
	var publishedKey *symkey.Key

	search := func(query string, cb SearchCallback, context any) [16]byte { return NewGUID() }
	fetch := func(hit FileHandle) ([]byte, error) { t.Fatal("fetchKey should not be called"); return nil, nil }
	publish := func(name string, key *symkey.Key) error {
		publishedName = name
		publishedKey = key
		return nil
	}

	g, status := JoinGroup(groups, "friends", 10*time.Millisecond, search, fetch, publish)
	require.Equal(t, JoinCreated, status)
	assert.Equal(t, "friends", g.Name())
	assert.Equal(t, "friends", publishedName)
	assert.Equal(t, publishedKey, g.Key())

	got, ok := groups.Get("friends")
	assert.True(t, ok)
	assert.Same(t, g, got)
}

func TestJoinGroupFetchesKeyOnReply(t *testing.T) {
	groups := NewGroups()
	realKey, err := symkey.Generate()
	require.NoError(t, err)

	search := func(query string, cb SearchCallback, context any) [16]byte {
		go cb(FileHandle{Name: "key", Ref: 1, Group: "friends"})
		return NewGUID()
	}
	fetch := func(hit FileHandle) ([]byte, error) {
		assert.Equal(t, "friends", hit.Group)
		return realKey.Bytes(), nil
	}
	publish := func(name string, key *symkey.Key) error {
		t.Fatal("publish should not be called when a reply arrives")
		return nil
	}

	g, status := JoinGroup(groups, "friends", 200*time.Millisecond, search, fetch, publish)
	require.Equal(t, JoinOK, status)
	assert.Equal(t, realKey.Bytes(), g.Key().Bytes())
}

func TestJoinGroupErrorsWhenFetchFails(t *testing.T) {
	groups := NewGroups()
	search := func(query string, cb SearchCallback, context any) [16]byte {
		go cb(FileHandle{Name: "key", Ref: 1, Group: "friends"})
		return NewGUID()
	}
	fetch := func(hit FileHandle) ([]byte, error) { return nil, assertFetchErr{} }
	publish := func(name string, key *symkey.Key) error { return nil }

	_, status := JoinGroup(groups, "friends", 200*time.Millisecond, search, fetch, publish)
	assert.Equal(t, JoinError, status)
}

type assertFetchErr struct{}

func (assertFetchErr) Error() string { return "fetch failed" }

func TestGroupAcceptDefaultsToTrue(t *testing.T) {
	key, _ := symkey.Generate()
	g := NewGroup("friends", key)
	assert.True(t, g.Accept("anyone"))

	g.SetAcceptFunc(func(cn string) bool { return cn == "alice" })
	assert.True(t, g.Accept("alice"))
	assert.False(t, g.Accept("bob"))
}

// fakeBuffer is a minimal growable io.Reader/io.Writer used where
// bytes.Buffer would otherwise be imported for a single round trip.
type fakeBuffer struct {
	data []byte
}

func (b *fakeBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *fakeBuffer) Read(p []byte) (int, error) {
	n := copy(p, b.data)
	b.data = b.data[n:]
	if n == 0 {
		return 0, errEOF{}
	}
	return n, nil
}

type errEOF struct{}

func (errEOF) Error() string { return "EOF" }
