// Package pipeio provides context-bounded reads and writes on pipe files.
//
// Pipes to a child process can stall indefinitely: the child may never read
// its stdin or never write its stdout. Rather than putting the pipe into
// non-blocking mode and spinning on would-block errors, this package leans
// on os.File I/O deadlines, polling in short slices so a context
// cancellation or deadline is observed within a few milliseconds.
package pipeio

import (
	"context"
	"errors"
	"io"
	"os"
	"time"
)

// pollSlice is the longest a single read or write may block before the
// context is rechecked.
const pollSlice = 5 * time.Millisecond

// deadlineFile is the part of *os.File these helpers need.
type deadlineFile interface {
	io.ReadWriter
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// WriteAll writes all of p to f, or fails with the context's error once ctx
// is done. A partially written prefix may remain in the pipe on failure.
func WriteAll(ctx context.Context, f deadlineFile, p []byte) error {
	for len(p) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.SetWriteDeadline(time.Now().Add(pollSlice)); err != nil {
			return err
		}
		n, err := f.Write(p)
		p = p[n:]
		if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
			return err
		}
	}
	return nil
}

// ReadFull reads exactly len(p) bytes from f into p, or fails with the
// context's error once ctx is done. io.ErrUnexpectedEOF reports a stream
// that ended short, matching io.ReadFull.
func ReadFull(ctx context.Context, f deadlineFile, p []byte) error {
	total := 0
	for total < len(p) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.SetReadDeadline(time.Now().Add(pollSlice)); err != nil {
			return err
		}
		n, err := f.Read(p[total:])
		total += n
		switch {
		case err == nil, errors.Is(err, os.ErrDeadlineExceeded):
			// keep going
		case errors.Is(err, io.EOF):
			if total > 0 && total < len(p) {
				return io.ErrUnexpectedEOF
			}
			if total == len(p) {
				return nil
			}
			return io.EOF
		default:
			return err
		}
	}
	return nil
}

// Reader adapts a pipe file to io.Reader with a context bound, so stream
// decoders can consume it without knowing about deadlines.
type Reader struct {
	Ctx  context.Context
	File deadlineFile
}

// NewReader returns a context-bounded io.Reader over f.
func NewReader(ctx context.Context, f *os.File) *Reader {
	return &Reader{Ctx: ctx, File: f}
}

func (r *Reader) Read(p []byte) (int, error) {
	for {
		if err := r.Ctx.Err(); err != nil {
			return 0, err
		}
		if err := r.File.SetReadDeadline(time.Now().Add(pollSlice)); err != nil {
			return 0, err
		}
		n, err := r.File.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
			return n, err
		}
	}
}

// Writer adapts a pipe file to io.Writer with a context bound.
type Writer struct {
	Ctx  context.Context
	File deadlineFile
}

// NewWriter returns a context-bounded io.Writer over f.
func NewWriter(ctx context.Context, f *os.File) *Writer {
	return &Writer{Ctx: ctx, File: f}
}

func (w *Writer) Write(p []byte) (int, error) {
	if err := WriteAll(w.Ctx, w.File, p); err != nil {
		// WriteAll does not report the partial count; callers treat any
		// error as a failed stream, so zero is accurate enough.
		return 0, err
	}
	return len(p), nil
}
