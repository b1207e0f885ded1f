package main

import (
	"context"
	"net"
	"net/http"
	"syscall"

	"github.com/AdguardTeam/golibs/log"
	"golang.org/x/sync/semaphore"
)

const (
	admissionPermits = 400
	clientReadBufLen = 4095
)

// ConnectionServer accepts client connections, admits them through a
// counting semaphore, and hands each one to an independent worker. There is
// no worker pool: every accepted connection spawns one goroutine and
// detaches it.
type ConnectionServer struct {
	config        Config
	cache         *Cache
	forwarder     *Forwarder
	fileEndpoints *FileEndpoints
	sem           *semaphore.Weighted
}

// NewConnectionServer wires a ConnectionServer around a shared Cache handle.
// Per the spec's design notes, the Cache is passed explicitly rather than
// held as ambient global state.
func NewConnectionServer(config Config, cache *Cache) *ConnectionServer {
	return &ConnectionServer{
		config:        config,
		cache:         cache,
		forwarder:     NewForwarder(cache),
		fileEndpoints: NewFileEndpoints(config),
		sem:           semaphore.NewWeighted(admissionPermits),
	}
}

// ListenAndServe opens the listening socket, bound to the wildcard address
// with SO_REUSEADDR explicitly set, and runs the accept loop until the
// listener is closed or an unrecoverable accept error occurs.
func (s *ConnectionServer) ListenAndServe() error {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var controlErr error
			err := c.Control(func(fd uintptr) {
				controlErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return controlErr
		},
	}
	ln, err := lc.Listen(context.Background(), "tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	return s.Serve(ln)
}

// Serve runs the accept loop over an already-bound listener. Admission is
// capped by the 400-permit semaphore, not by the OS-level backlog: Go's net
// package does not expose a backlog knob, so the listen backlog tracks the
// platform default while the semaphore enforces the spec's concurrency cap.
func (s *ConnectionServer) Serve(ln net.Listener) error {
	log.Info("proxy listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.serve(conn)
	}
}

// serve handles exactly one client connection end-to-end: admission,
// request read and parse, routing, and guaranteed socket release.
func (s *ConnectionServer) serve(client net.Conn) {
	ctx := context.Background()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		mConnectionsRejectedTotal.Inc()
		client.Close()
		return
	}
	mConnectionsAcceptedTotal.Inc()
	defer s.sem.Release(1)
	defer client.Close()

	buf := make([]byte, clientReadBufLen)
	n, err := client.Read(buf)
	if err != nil || n == 0 {
		return
	}
	raw := buf[:n]

	req, err := ParseRequest(raw)
	if err != nil {
		log.Printf("parse failed: %v", err)
		if status, ok := statusForError(err); ok {
			_ = writeErrorResponse(client, status)
		}
		return
	}

	mRequestsTotal.WithLabelValues(req.Method).Inc()
	log.Printf("%s %s%s", req.Method, req.Host, req.Path)

	if err := s.route(client, req, raw); err != nil {
		log.Printf("request failed: %s %s: %v", req.Method, req.Path, err)
	}
}

// route dispatches a parsed request to the file endpoints, the Forwarder, or
// a 405 response, per spec.md §4.5.
func (s *ConnectionServer) route(client net.Conn, req *ParsedRequest, raw []byte) error {
	switch req.Method {
	case http.MethodGet:
		switch {
		case isFindPath(req.Path):
			return s.fileEndpoints.GetFind(client, req.Path)
		case isFilesPath(req.Path):
			return s.fileEndpoints.GetFiles(client, req.Path)
		default:
			return s.forwarder.HandleGet(client, req)
		}
	case http.MethodPost:
		if req.AbsoluteForm {
			return s.forwarder.HandlePost(client, req, raw)
		}
		return s.fileEndpoints.Upload(client, req.Path, raw)
	case http.MethodPut:
		return s.fileEndpoints.Put(client, req.Path, raw)
	default:
		return writeErrorResponse(client, http.StatusMethodNotAllowed)
	}
}
