package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAbsoluteFormRequest(t *testing.T) {
	req, err := ParseRequest([]byte("GET http://example.com/a HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "example.com", req.Host)
	assert.Equal(t, "80", req.Port)
	assert.Equal(t, "/a", req.Path)
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.True(t, req.AbsoluteForm)
}

func TestParseAbsoluteFormWithPort(t *testing.T) {
	req, err := ParseRequest([]byte("GET http://h:8080/p HTTP/1.1\r\nHost: h\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "h", req.Host)
	assert.Equal(t, "8080", req.Port)
	assert.Equal(t, "/p", req.Path)
}

func TestParseAbsoluteFormWithoutPath(t *testing.T) {
	req, err := ParseRequest([]byte("GET http://h HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "/", req.Path)
}

func TestParseOriginFormWithHostHeader(t *testing.T) {
	req, err := ParseRequest([]byte("GET /index.html HTTP/1.1\r\nHost: example.org:9000\r\n\r\n"))
	require.NoError(t, err)
	assert.False(t, req.AbsoluteForm)
	assert.Equal(t, "example.org", req.Host)
	assert.Equal(t, "9000", req.Port)
	assert.Equal(t, "/index.html", req.Path)
}

func TestParseDefaultsHostAndPort(t *testing.T) {
	req, err := ParseRequest([]byte("GET /x HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "localhost", req.Host)
	assert.Equal(t, "80", req.Port)
}

func TestParseBodyIsByteForByteAfterHeaderBlock(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nHost: h\r\nContent-Length: 3\r\n\r\nABC"
	req, err := ParseRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []byte("ABC"), req.Body)
}

func TestParseUnsupportedMethodStillParses(t *testing.T) {
	req, err := ParseRequest([]byte("DELETE /x HTTP/1.1\r\nHost: h\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "DELETE", req.Method)
}

func TestParseMalformedRequestLine(t *testing.T) {
	_, err := ParseRequest([]byte("GET /x\r\nHost: h\r\n\r\n"))
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestParseEmptyBuffer(t *testing.T) {
	_, err := ParseRequest(nil)
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestParseHeaderLinesCapped(t *testing.T) {
	raw := "GET /x HTTP/1.1\r\nHost: h\r\n"
	for i := 0; i < 60; i++ {
		raw += "X-Extra: v\r\n"
	}
	raw += "\r\n"

	req, err := ParseRequest([]byte(raw))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(req.Headers), maxHeaderLines)
}

func TestCacheKeyFormat(t *testing.T) {
	req := &ParsedRequest{Host: "example.com", Port: "8080", Path: "/a"}
	assert.Equal(t, "example.com:8080/a", req.CacheKey())
}

func TestPortNumberValidation(t *testing.T) {
	req := &ParsedRequest{Port: "80"}
	n, ok := req.PortNumber()
	assert.True(t, ok)
	assert.Equal(t, 80, n)

	req.Port = "notaport"
	_, ok = req.PortNumber()
	assert.False(t, ok)

	req.Port = "70000"
	_, ok = req.PortNumber()
	assert.False(t, ok)
}
