package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/AdguardTeam/golibs/log"
)

const (
	upstreamDialTimeout = 30 * time.Second
	upstreamIOTimeout   = 30 * time.Second

	streamChunkSize  = 4096
	maxAccumulatedSz = 50 << 20 // 50 MiB; strict inequality per spec
)

// Forwarder dials origin servers, streams their responses back to clients,
// and memoizes size-eligible GET responses in the shared Cache.
type Forwarder struct {
	cache *Cache
}

// NewForwarder returns a Forwarder backed by the given process-wide Cache.
func NewForwarder(cache *Cache) *Forwarder {
	return &Forwarder{cache: cache}
}

// dialOrigin resolves and connects to host:port, applying the dial timeout
// spec.md §4.3.1 requires. A port outside [1, 65535] fails fast. Read/write
// deadlines are NOT set here: net.Conn deadlines are absolute cutoffs that
// apply to all I/O on the conn from the moment they're set, not per-call idle
// timers, so each caller refreshes the deadline immediately before its own
// Read/Write instead.
func dialOrigin(host, port string) (net.Conn, error) {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return nil, wrapErr(ErrUpstreamUnreachable, "invalid port %q", port)
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), upstreamDialTimeout)
	if err != nil {
		return nil, wrapErr(ErrUpstreamUnreachable, "dial %s:%s: %v", host, port, err)
	}
	return conn, nil
}

// HandleGet implements the GET path: cache lookup, and on miss, a fresh
// upstream dial, a minimal reconstructed request, and a stream-and-accumulate
// copy loop that caches the response when it is clean and size-eligible.
func (f *Forwarder) HandleGet(client net.Conn, req *ParsedRequest) error {
	key := req.CacheKey()

	mCacheRequestsTotal.Inc()
	if payload, ok := f.cache.Find(key); ok {
		mCacheHitsTotal.Inc()
		log.Printf("cache HIT: %s", key)
		_, err := client.Write(payload)
		if err != nil {
			return wrapErr(ErrClientGone, "write cached response: %v", err)
		}
		return nil
	}
	mCacheMissesTotal.Inc()
	log.Printf("cache MISS: %s", key)

	origin, err := dialOrigin(req.Host, req.Port)
	if err != nil {
		_ = writeErrorResponse(client, http.StatusBadGateway)
		return err
	}
	defer origin.Close()

	_ = origin.SetWriteDeadline(time.Now().Add(upstreamIOTimeout))
	outbound := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\nUser-Agent: ProxyServer/1.0\r\n\r\n", req.Path, req.Host)
	if _, err := origin.Write([]byte(outbound)); err != nil {
		_ = writeErrorResponse(client, http.StatusBadGateway)
		return wrapErr(ErrUpstreamUnreachable, "send request: %v", err)
	}

	return f.streamAndAccumulate(client, origin, key)
}

// streamAndAccumulate repeatedly reads up to streamChunkSize bytes from
// origin, writes each chunk to client immediately, and appends it to an
// in-memory buffer capped at maxAccumulatedSz. On clean EOF, a buffer whose
// size lies in (0, maxAccumulatedSz) is memoized under key. The read deadline
// is refreshed before every read so upstreamIOTimeout behaves as a per-read
// idle timeout rather than a cap on the whole transfer's wall-clock time.
func (f *Forwarder) streamAndAccumulate(client net.Conn, origin net.Conn, key string) error {
	cw := &countingWriter{w: client}
	buf := make([]byte, streamChunkSize)
	var accumulated []byte
	overflowed := false
	cleanEOF := false

	for {
		_ = origin.SetReadDeadline(time.Now().Add(upstreamIOTimeout))
		n, readErr := origin.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, err := cw.Write(chunk); err != nil {
				return wrapErr(ErrClientGone, "write to client: %v", err)
			}

			if !overflowed {
				if len(accumulated)+n > maxAccumulatedSz {
					overflowed = true
					accumulated = nil
				} else {
					accumulated = append(accumulated, chunk...)
				}
			}
		}

		if readErr != nil {
			if isTimeout(readErr) {
				mBytesStreamedTotal.Add(float64(cw.count))
				return wrapErr(ErrUpstreamTimeout, "read from origin: %v", readErr)
			}
			// Any other read error ends the stream; only io.EOF is a clean close.
			cleanEOF = errors.Is(readErr, io.EOF)
			break
		}
	}
	mBytesStreamedTotal.Add(float64(cw.count))

	if cleanEOF && !overflowed && len(accumulated) > 0 && len(accumulated) < maxAccumulatedSz {
		f.cache.Add(key, accumulated)
	}
	return nil
}

// isTimeout reports whether err is a net.Error with Timeout() true.
func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// HandlePost dials the origin and forwards the client's raw request bytes
// verbatim, then streams the response back without caching. The parser does
// not retain a length-preserving body for arbitrary content types, so POST
// bypasses reconstruction entirely; per spec.md §9 this is an accepted
// limitation, not something to paper over with a body-looping read.
func (f *Forwarder) HandlePost(client net.Conn, req *ParsedRequest, raw []byte) error {
	origin, err := dialOrigin(req.Host, req.Port)
	if err != nil {
		_ = writeErrorResponse(client, http.StatusBadGateway)
		return err
	}
	defer origin.Close()

	_ = origin.SetWriteDeadline(time.Now().Add(upstreamIOTimeout))
	if _, err := origin.Write(raw); err != nil {
		_ = writeErrorResponse(client, http.StatusBadGateway)
		return wrapErr(ErrUpstreamUnreachable, "send request: %v", err)
	}

	cw := &countingWriter{w: client}
	buf := make([]byte, streamChunkSize)
	for {
		_ = origin.SetReadDeadline(time.Now().Add(upstreamIOTimeout))
		n, readErr := origin.Read(buf)
		if n > 0 {
			if _, err := cw.Write(buf[:n]); err != nil {
				mBytesStreamedTotal.Add(float64(cw.count))
				return wrapErr(ErrClientGone, "write to client: %v", err)
			}
		}
		if readErr != nil {
			mBytesStreamedTotal.Add(float64(cw.count))
			if isTimeout(readErr) {
				return wrapErr(ErrUpstreamTimeout, "read from origin: %v", readErr)
			}
			break
		}
	}
	return nil
}

// writeErrorResponse synthesizes a minimal HTML error page for the given
// status code. Unlike the teacher's source, Content-Length is computed from
// the actual body, not padded by a fixed, incorrect constant.
func writeErrorResponse(client net.Conn, status int) error {
	text := http.StatusText(status)
	body := fmt.Sprintf("<html><body><h1>%d %s</h1></body></html>", status, text)
	resp := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Type: text/html\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, text, len(body), body,
	)
	_, err := client.Write([]byte(resp))
	return err
}
