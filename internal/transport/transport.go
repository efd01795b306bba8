// Package transport provides byte-stream sources for agent trace
// streams. Sources deliver opaque chunks; all envelope interpretation
// happens downstream.
package transport

import (
	"context"
	"io"
)

// Source is one upstream byte stream. Chunks arrive with arbitrary,
// non-aligned boundaries. The Chunks channel closes when the stream
// ends; a terminal failure is delivered on Errors first. Close aborts
// the stream; it is safe to call more than once.
type Source interface {
	Chunks() <-chan []byte
	Errors() <-chan error
	Done() <-chan struct{}
	Close() error
}

const readBufSize = 4 * 1024

// ReaderSource streams chunks from an io.Reader, used for file replay
// and stdin pipes.
type ReaderSource struct {
	r      io.Reader
	chunks chan []byte
	errs   chan error
	done   chan struct{}
	cancel context.CancelFunc
}

// NewReaderSource starts reading from r until EOF or ctx cancellation.
func NewReaderSource(ctx context.Context, r io.Reader) *ReaderSource {
	ctx, cancel := context.WithCancel(ctx)
	s := &ReaderSource{
		r:      r,
		chunks: make(chan []byte, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.readLoop(ctx)
	return s
}

func (s *ReaderSource) readLoop(ctx context.Context) {
	defer close(s.done)
	defer close(s.chunks)

	buf := make([]byte, readBufSize)
	for {
		n, err := s.r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				select {
				case s.errs <- err:
				default:
				}
			}
			return
		}
	}
}

func (s *ReaderSource) Chunks() <-chan []byte { return s.chunks }
func (s *ReaderSource) Errors() <-chan error  { return s.errs }
func (s *ReaderSource) Done() <-chan struct{} { return s.done }

// Close stops the read loop. The underlying reader is the caller's to
// close.
func (s *ReaderSource) Close() error {
	s.cancel()
	return nil
}
