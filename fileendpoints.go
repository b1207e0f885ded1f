package main

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/AdguardTeam/golibs/log"
)

const maxUploadSize = 10 << 20 // 10 MiB

// FileEndpoints serves the local-filesystem upload/download surface that
// short-circuits the Forwarder: these routes never dial upstream and never
// populate the Cache.
type FileEndpoints struct {
	config Config
}

// NewFileEndpoints returns a FileEndpoints bound to the given directories.
func NewFileEndpoints(config Config) *FileEndpoints {
	return &FileEndpoints{config: config}
}

// isFindPath reports whether path is under the /find/ namespace.
func isFindPath(path string) bool {
	return strings.HasPrefix(path, "/find/")
}

// isFilesPath reports whether path is under the /files/ namespace.
func isFilesPath(path string) bool {
	return strings.HasPrefix(path, "/files/")
}

// relPath strips the given namespace prefix from path, rejecting attempts to
// escape the target directory via "..".
func relPath(path, prefix string) (string, bool) {
	rel := strings.TrimPrefix(path, prefix)
	if rel == "" || strings.Contains(rel, "..") {
		return "", false
	}
	return rel, true
}

// Put handles PUT /find/<relpath>: the request body (everything after the
// first blank line in the raw request) is written, truncating, to
// ./find/<relpath>.
func (fe *FileEndpoints) Put(client net.Conn, path string, raw []byte) error {
	rel, ok := relPath(path, "/find/")
	if !ok {
		return writeErrorResponse(client, http.StatusBadRequest)
	}

	idx := bytes.Index(raw, []byte("\r\n\r\n"))
	var body []byte
	if idx >= 0 {
		body = raw[idx+4:]
	}

	target := filepath.Join(fe.config.FindDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return writeErrorResponse(client, http.StatusInternalServerError)
	}
	if err := os.WriteFile(target, body, 0644); err != nil {
		log.Printf("find PUT failed: %s: %v", target, err)
		return writeErrorResponse(client, http.StatusInternalServerError)
	}
	mUploadBytesTotal.Add(float64(len(body)))

	resp := "HTTP/1.1 201 Created\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"
	_, err := client.Write([]byte(resp))
	return err
}

// GetFind handles GET /find/<relpath>: serves the file as text/plain in
// <=1 KiB chunks, or 404 if it does not exist.
func (fe *FileEndpoints) GetFind(client net.Conn, path string) error {
	rel, ok := relPath(path, "/find/")
	if !ok {
		return writeErrorResponse(client, http.StatusNotFound)
	}
	target := filepath.Join(fe.config.FindDir, filepath.FromSlash(rel))
	return fe.serveFile(client, target, "text/plain", "")
}

// GetFiles handles GET /files/<relpath>: serves the file as
// application/octet-stream with a Content-Disposition attachment header, or
// 404 if it does not exist.
func (fe *FileEndpoints) GetFiles(client net.Conn, path string) error {
	rel, ok := relPath(path, "/files/")
	if !ok {
		return writeErrorResponse(client, http.StatusNotFound)
	}
	target := filepath.Join(fe.config.FilesDir, filepath.FromSlash(rel))
	disposition := fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(target))
	return fe.serveFile(client, target, "application/octet-stream", disposition)
}

// serveFile stats target, writes a 404 if absent, else streams its contents
// in <=1 KiB chunks after a header block built from contentType and the
// optional Content-Disposition value.
func (fe *FileEndpoints) serveFile(client net.Conn, target, contentType, disposition string) error {
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return writeErrorResponse(client, http.StatusNotFound)
	}
	f, err := os.Open(target)
	if err != nil {
		return writeErrorResponse(client, http.StatusNotFound)
	}
	defer f.Close()

	header := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: %s\r\nContent-Length: %d\r\n", contentType, info.Size())
	if disposition != "" {
		header += fmt.Sprintf("Content-Disposition: %s\r\n", disposition)
	}
	header += "Connection: close\r\n\r\n"
	if _, err := client.Write([]byte(header)); err != nil {
		return wrapErr(ErrClientGone, "write header: %v", err)
	}

	buf := make([]byte, 1024)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if _, err := client.Write(buf[:n]); err != nil {
				return wrapErr(ErrClientGone, "write body: %v", err)
			}
			mDownloadBytesTotal.Add(float64(n))
		}
		if readErr != nil {
			break
		}
	}
	return nil
}

// Upload handles POST to an arbitrary path that is not otherwise routed: it
// persists up to 10 MiB of the request body to ./uploads/<basename>,
// truncating any excess.
func (fe *FileEndpoints) Upload(client net.Conn, path string, raw []byte) error {
	idx := bytes.Index(raw, []byte("\r\n\r\n"))
	var body []byte
	if idx >= 0 {
		body = raw[idx+4:]
	}
	if len(body) > maxUploadSize {
		body = body[:maxUploadSize]
	}

	base := filepath.Base(path)
	if base == "" || base == "." || base == "/" {
		base = "upload.bin"
	}

	if err := os.MkdirAll(fe.config.UploadDir, 0755); err != nil {
		return writeErrorResponse(client, http.StatusInternalServerError)
	}
	target := filepath.Join(fe.config.UploadDir, base)
	if err := os.WriteFile(target, body, 0644); err != nil {
		log.Printf("upload failed: %s: %v", target, err)
		return writeErrorResponse(client, http.StatusInternalServerError)
	}
	mUploadBytesTotal.Add(float64(len(body)))

	resp := "HTTP/1.1 201 Created\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"
	_, err := client.Write([]byte(resp))
	return err
}
