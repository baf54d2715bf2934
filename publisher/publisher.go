// Package publisher is the only write path into the log.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"problem-map/contract"
	"problem-map/domain/event"
	"problem-map/errors"

	"github.com/twmb/franz-go/pkg/kgo"
)

var _ contract.IPublisher = (*Publisher)(nil)

// Publisher wraps payloads into envelopes and appends them to the stream of their kind,
// keyed by aggregate id (chat id for messages). Records sharing a key keep the order
// they were submitted in; nothing is promised across keys.
type Publisher struct {
	log      *slog.Logger
	producer contract.LogProducer
	now      func() time.Time
}

func NewPublisher(log *slog.Logger, producer contract.LogProducer) *Publisher {
	return &Publisher{log: log, producer: producer, now: time.Now}
}

func (p *Publisher) PublishInsert(ctx context.Context, payload event.Payload) (contract.IPublishHandle, error) {
	if payload == nil || payload.Type() != event.Insert {
		return nil, fmt.Errorf("publish insert: %w", errors.ErrInvalidPayload)
	}
	return p.publish(ctx, payload)
}

func (p *Publisher) PublishUpdate(ctx context.Context, payload event.Payload) (contract.IPublishHandle, error) {
	if payload == nil || payload.Type() != event.Update {
		return nil, fmt.Errorf("publish update: %w", errors.ErrInvalidPayload)
	}
	return p.publish(ctx, payload)
}

func (p *Publisher) publish(ctx context.Context, payload event.Payload) (*Handle, error) {
	if err := checkTarget(payload); err != nil {
		return nil, err
	}
	env, raw, err := event.Encode(payload, p.now())
	if err != nil {
		return nil, err
	}

	handle := newHandle(env.ID)
	record := &kgo.Record{
		Topic: string(payload.Kind()),
		Key:   []byte(payload.PartitionKey()),
		Value: raw,
	}
	p.producer.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.log.Warn("Envelope not appended to the log",
				"event_id", env.ID, "stream", record.Topic, "key", string(record.Key), "error", err)
			handle.resolve(-1, err)
			return
		}
		p.log.Debug("Envelope appended",
			"event_id", env.ID, "stream", r.Topic, "partition", r.Partition, "offset", r.Offset)
		handle.resolve(r.Offset, nil)
	})
	return handle, nil
}

// checkTarget refuses payloads that could not address their aggregate,
// before anything reaches the transport.
func checkTarget(payload event.Payload) error {
	switch p := payload.(type) {
	case event.ProblemInserted:
		if p.Problem.ID == "" {
			return fmt.Errorf("problem insert without id: %w", errors.ErrInvalidTarget)
		}
	case event.ProblemUpdated:
		if p.Patch.ID == "" {
			return fmt.Errorf("problem update without id: %w", errors.ErrInvalidTarget)
		}
	case event.MessageInserted:
		if p.Message.ChatID == "" || p.Message.MessageID == "" {
			return fmt.Errorf("message insert without chat id or message id: %w", errors.ErrInvalidTarget)
		}
	case event.MessageUpdated:
		if p.Patch.ChatID == "" || p.Patch.MessageID == "" {
			return fmt.Errorf("message update without chat id or message id: %w", errors.ErrInvalidTarget)
		}
	default:
		return fmt.Errorf("cannot publish %T: %w", payload, errors.ErrInvalidPayload)
	}
	return nil
}
