package publisher

import (
	"context"
	"fmt"
	"sync"

	"problem-map/contract"
	"problem-map/errors"
)

var _ contract.IPublishHandle = (*Handle)(nil)

// Handle resolves exactly once, when the log acknowledged or refused the envelope.
// Callers are free to ignore it.
type Handle struct {
	eventID string
	done    chan struct{}
	once    sync.Once
	err     error
	offset  int64
}

func newHandle(eventID string) *Handle {
	return &Handle{eventID: eventID, done: make(chan struct{}), offset: -1}
}

func (h *Handle) EventID() string { return h.eventID }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the envelope is durable in the log or ctx ends.
// Giving up on the wait does not withdraw the envelope.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Offset is the position assigned by the log, -1 until the envelope is acknowledged.
func (h *Handle) Offset() int64 {
	select {
	case <-h.done:
		return h.offset
	default:
		return -1
	}
}

func (h *Handle) resolve(offset int64, err error) {
	h.once.Do(func() {
		if err != nil {
			h.err = fmt.Errorf("event %s: %w: %v", h.eventID, errors.ErrTransport, err)
		} else {
			h.offset = offset
		}
		close(h.done)
	})
}
