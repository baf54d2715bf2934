package server

import (
	"context"
	"log/slog"

	"problem-map/domain/event"
)

// Sink hands room notifications over to the websocket connection that owns it.
type Sink struct {
	log                *slog.Logger
	ConnectedUserEvent chan event.Notification
}

func NewWebsocketSink(log *slog.Logger, bufferSize int) *Sink {
	return &Sink{log: log, ConnectedUserEvent: make(chan event.Notification, bufferSize)}
}

// Consume is called by the fan-out and must not block it.
// A full buffer drops the snapshot, the next one carries the whole room state anyway.
func (s *Sink) Consume(ctx context.Context, n event.Notification) error {
	select {
	case s.ConnectedUserEvent <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Warn("Websocket buffer full, notification dropped", "room", n.Room, "name", n.Name)
		return nil
	}
}
