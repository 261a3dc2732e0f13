package realtime

import (
	"errors"
	"sync"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
)

var (
	// ErrSinkClosed indicates the connection has been torn down.
	ErrSinkClosed = errors.New("sink closed")
	// ErrSinkFull indicates the connection is not draining its queue.
	ErrSinkFull = errors.New("sink queue full")
)

// Sink accepts events for a single live connection. Deliver must not block.
type Sink interface {
	Deliver(event dto.Event) error
}

// streamSink buffers events for a pull-based transport such as server-sent events.
type streamSink struct {
	events chan dto.Event
	done   chan struct{}
	once   sync.Once
}

func newStreamSink(size int) *streamSink {
	if size <= 0 {
		size = 16
	}
	return &streamSink{
		events: make(chan dto.Event, size),
		done:   make(chan struct{}),
	}
}

func (s *streamSink) Deliver(event dto.Event) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.events <- event:
		return nil
	default:
		return ErrSinkFull
	}
}

func (s *streamSink) close() {
	s.once.Do(func() {
		close(s.done)
	})
}
