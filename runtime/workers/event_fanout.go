package workers

import (
	"context"
	"log/slog"
	"time"

	"problem-map/contract"
	"problem-map/domain/event"
)

var _ contract.INotifier = (*ChannelNotifier)(nil)

// ChannelNotifier is the bridge between the stores and the fan-out worker.
// Notify never blocks: when the buffer is full the notification is dropped,
// the next snapshot of the same room carries the whole state anyway.
type ChannelNotifier struct {
	log           *slog.Logger
	notifications chan event.Notification
}

func NewChannelNotifier(log *slog.Logger, bufferSize int) *ChannelNotifier {
	return &ChannelNotifier{log: log, notifications: make(chan event.Notification, bufferSize)}
}

func (n *ChannelNotifier) Notify(notification event.Notification) {
	select {
	case n.notifications <- notification:
	default:
		n.log.Warn("Notification dropped, fan-out is lagging",
			"room", string(notification.Room), "name", string(notification.Name))
	}
}

func (n *ChannelNotifier) Notifications() <-chan event.Notification { return n.notifications }

func (n *ChannelNotifier) Len() int { return len(n.notifications) }

func (n *ChannelNotifier) Cap() int { return cap(n.notifications) }

// EventFanout broadcasts room snapshots to in-process consumers.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries. EventFanout is not a message broker: a sink that
// does not consume within the sink timeout misses the notification.
//
// Permanent sinks receive every notification, room sinks only the ones of
// the rooms they joined.
type EventFanout struct {
	log           *slog.Logger
	notifications <-chan event.Notification
	registry      contract.IRegistry
	permanent     []contract.EventSink
	sinkTimeout   time.Duration
}

func NewEventFanout(
	log *slog.Logger,
	notifications <-chan event.Notification,
	registry contract.IRegistry,
	sinkTimeout time.Duration,
	permanent ...contract.EventSink,
) *EventFanout {
	return &EventFanout{
		log:           log,
		notifications: notifications,
		registry:      registry,
		permanent:     permanent,
		sinkTimeout:   sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case n := <-w.notifications:
			w.Fanout(ctx, n)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping notification fan-out")
			return nil
		}
	}
}

// Fanout delivers n to every interested sink, one after the other so that a
// subscriber never sees an older snapshot after a newer one.
func (w *EventFanout) Fanout(ctx context.Context, n event.Notification) {
	sinks := append(append([]contract.EventSink{}, w.permanent...), w.registry.GetSinksForRoom(n.Room)...)
	for _, sink := range sinks {
		w.deliver(ctx, sink, n)
	}
}

func (w *EventFanout) deliver(ctx context.Context, sink contract.EventSink, n event.Notification) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, n); err != nil {
		w.log.Debug("Sink missed a notification", "room", string(n.Room), "name", string(n.Name), "error", err)
	}
}
