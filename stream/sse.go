package stream

import (
	"fmt"
	"io"
	"net/http"
	"sync"
)

// SSEWriter is a Subscriber that encodes events as Server-Sent Events
// frames on an io.Writer. When the writer implements http.Flusher each
// frame is flushed immediately so clients see events as they happen.
type SSEWriter struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

// NewSSEWriter creates an SSE-encoding subscriber for w.
func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{w: w}
}

// Handle writes the event as an SSE frame:
//
//	event: progress
//	data: {"session_id":...}
//
// After the first write error the writer goes inert and drops further
// events; the error is available via Err.
func (s *SSEWriter) Handle(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}

	data, err := event.JSON()
	if err != nil {
		s.err = err
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Kind, data); err != nil {
		s.err = err
		return
	}
	if flusher, ok := s.w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Err returns the first encode or write error, if any.
func (s *SSEWriter) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
