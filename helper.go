package main

import "io"

// countingWriter wraps an io.Writer and counts the bytes written through it,
// used to feed byte-streamed metrics without changing call sites.
type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
