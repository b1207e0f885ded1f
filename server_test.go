package main

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (addr string, cfg Config) {
	t.Helper()
	dir := t.TempDir()
	cfg = Config{
		UploadDir: filepath.Join(dir, "uploads"),
		FindDir:   filepath.Join(dir, "find"),
		FilesDir:  filepath.Join(dir, "files"),
	}
	cache := NewCache(false)
	srv := NewConnectionServer(cfg, cache)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go srv.Serve(ln)
	return ln.Addr().String(), cfg
}

func sendRequest(t *testing.T, addr, raw string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 65536)
	n, _ := conn.Read(buf)
	return string(buf[:n])
}

func TestServerRejectsUnsupportedMethod(t *testing.T) {
	addr, _ := newTestServer(t)
	resp := sendRequest(t, addr, "DELETE /x HTTP/1.1\r\nHost: h\r\n\r\n")
	require.Contains(t, resp, "HTTP/1.1 405")
}

func TestServerLocalDownload(t *testing.T) {
	addr, cfg := newTestServer(t)
	require.NoError(t, os.MkdirAll(cfg.FilesDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.FilesDir, "hello.txt"), []byte("hi"), 0644))

	resp := sendRequest(t, addr, "GET /files/hello.txt HTTP/1.1\r\nHost: localhost\r\n\r\n")
	require.Contains(t, resp, `Content-Disposition: attachment; filename="hello.txt"`)
	require.Contains(t, resp, "hi")
}

func TestServerPutPersistence(t *testing.T) {
	addr, cfg := newTestServer(t)
	resp := sendRequest(t, addr, "PUT /find/a.txt HTTP/1.1\r\nHost: h\r\n\r\nABC")
	require.Contains(t, resp, "201 Created")

	data, err := os.ReadFile(filepath.Join(cfg.FindDir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "ABC", string(data))
}

func TestServerMalformedRequestGets400(t *testing.T) {
	addr, _ := newTestServer(t)
	resp := sendRequest(t, addr, "GET /x\r\nHost: h\r\n\r\n")
	require.Contains(t, resp, "HTTP/1.1 400")
}

func TestServerCacheMissThenHit(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	var dials atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			dials.Add(1)
			go func(c net.Conn) {
				defer c.Close()
				r := bufio.NewReader(c)
				_, _ = r.ReadString('\n')
				_, _ = c.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\nHEY"))
			}(conn)
		}
	}()
	originAddr := ln.Addr().(*net.TCPAddr)

	addr, _ := newTestServer(t)
	target := "http://127.0.0.1:" + strconv.Itoa(originAddr.Port) + "/a"

	resp1 := sendRequest(t, addr, "GET "+target+" HTTP/1.1\r\nHost: 127.0.0.1\r\n\r\n")
	require.Contains(t, resp1, "HEY")

	resp2 := sendRequest(t, addr, "GET "+target+" HTTP/1.1\r\nHost: 127.0.0.1\r\n\r\n")
	require.Contains(t, resp2, "HEY")
	require.Equal(t, int32(1), dials.Load(), "second request should be served from cache without a new dial")
}
