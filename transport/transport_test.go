package transport

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUngetPrependsNotAppends(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	go func() {
		cli.Write([]byte("XYZ"))
	}()

	c := wrap(srv, ModeRaw)
	c.Unget([]byte("B"))
	c.Unget([]byte("A")) // most recent Unget must be served first

	buf := make([]byte, 1)
	_, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "A", string(buf))

	_, err = c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "B", string(buf))

	_, err = c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "X", string(buf))
}

func TestClassifyHTTPPrefixes(t *testing.T) {
	assert.Equal(t, ModeHTTP, classify([]byte("GET /x HTTP/1.1")))
	assert.Equal(t, ModeHTTP, classify([]byte("PUT /x HTTP/1.1")))
	assert.Equal(t, ModeHTTP, classify([]byte("POST /x HTTP/1.1")))
	assert.Equal(t, ModeRaw, classify([]byte("GNUTELLA CONNECT/0.4")))
}

func TestListenEphemeralAndAcceptClassifiesRaw(t *testing.T) {
	l, err := Listen(0)
	require.NoError(t, err)
	defer l.Close()
	assert.NotZero(t, l.Port)

	go func() {
		conn, err := net.DialTimeout("tcp", l.ln.Addr().String(), time.Second)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("GNUTELLA CONNECT/0.4\n\n"))
	}()

	conn, err := l.Accept(true)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, ModeRaw, conn.Mode)

	buf := make([]byte, len("GNUTELLA CONNECT/0.4\n\n"))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "GNUTELLA CONNECT/0.4\n\n", string(buf))
}

func TestListenAcceptClassifiesHTTPAndPreservesBytes(t *testing.T) {
	l, err := Listen(0)
	require.NoError(t, err)
	defer l.Close()

	request := "GET /get/1/name HTTP/1.1\r\nHost: x\r\n\r\n"
	go func() {
		conn, err := net.DialTimeout("tcp", l.ln.Addr().String(), time.Second)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(request))
	}()

	conn, err := l.Accept(true)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, ModeHTTP, conn.Mode)

	buf := make([]byte, len(request))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, request, string(buf))
}

func TestProxyStateMachineLatchesNoProxyOnDirectSuccess(t *testing.T) {
	p := NewProxy("10.0.0.1", 3128, 10*time.Millisecond)
	calls := 0
	p.dial = func(ip string, port int, timeout time.Duration) (net.Conn, error) {
		calls++
		a, b := net.Pipe()
		go func() { io.Copy(io.Discard, b) }()
		_ = a
		return b, nil
	}

	_, usingProxy, err := p.Connect("1.2.3.4", 80, time.Second)
	require.NoError(t, err)
	assert.False(t, usingProxy)
	assert.Equal(t, StateNoProxy, p.State())
	assert.Equal(t, 1, calls)
}

func TestProxyStateMachineLatchesProxyOnDirectFailure(t *testing.T) {
	p := NewProxy("10.0.0.1", 3128, 5*time.Millisecond)
	p.dial = func(ip string, port int, timeout time.Duration) (net.Conn, error) {
		if ip != "10.0.0.1" {
			return nil, assertErr{}
		}
		_, b := net.Pipe()
		return b, nil
	}

	_, usingProxy, err := p.Connect("1.2.3.4", 80, time.Second)
	require.NoError(t, err)
	assert.True(t, usingProxy)
	assert.Equal(t, StateProxy, p.State())

	// Subsequent calls must not re-try direct.
	directCalls := 0
	p.dial = func(ip string, port int, timeout time.Duration) (net.Conn, error) {
		if ip != "10.0.0.1" {
			directCalls++
		}
		_, b := net.Pipe()
		return b, nil
	}
	_, usingProxy2, err := p.Connect("1.2.3.4", 80, time.Second)
	require.NoError(t, err)
	assert.True(t, usingProxy2)
	assert.Equal(t, 0, directCalls)
}

type assertErr struct{}

func (assertErr) Error() string { return "direct dial failed" }

func TestParseHeadersCRLFAndLF(t *testing.T) {
	crlf := []byte("GET /x HTTP/1.1\r\nContent-Length: 5\r\n\r\nHELLOtrailing")
	h, bodyStart, ok := ParseHeaders(crlf)
	require.True(t, ok)
	assert.Equal(t, "GET /x HTTP/1.1", h.FirstLine)
	assert.Equal(t, int64(5), h.ContentLength())
	assert.Equal(t, "HELLOtrailing", string(crlf[bodyStart:]))

	lf := []byte("HTTP 200 OK\ncontent-length: 3\n\nABCrest")
	h2, bodyStart2, ok2 := ParseHeaders(lf)
	require.True(t, ok2)
	assert.Equal(t, int64(3), h2.ContentLength())
	assert.Equal(t, 200, h2.Status())
	assert.Equal(t, "ABCrest", string(lf[bodyStart2:]))
}

func TestParseHeadersMalformedStatusDefaultsTo400(t *testing.T) {
	h := Headers{FirstLine: "NOT A STATUS LINE"}
	assert.Equal(t, 400, h.Status())
}

func TestRequestLineAbsoluteVsOriginForm(t *testing.T) {
	origin := RequestLine("GET", false, "host", 6346, "/get/1/file")
	assert.Equal(t, "GET /get/1/file HTTP/1.1\r\n", origin)

	absolute := RequestLine("PUT", true, "host", 6346, "/get/1/file")
	assert.Equal(t, "PUT http://host:6346/get/1/file HTTP/1.1\r\n", absolute)
}
