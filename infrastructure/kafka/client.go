// Package kafka backs the log with Kafka through franz-go. The same client
// produces envelopes and consumes them back.
package kafka

import (
	"fmt"
	"log/slog"
	"time"

	"problem-map/domain/event"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Streams are the topics the applier consumes, one per aggregate kind.
var Streams = []string{string(event.KindProblem), string(event.KindMessage)}

// GroupID builds a consumer group that no previous boot used, so the consumer
// always resets to the start of the log and rebuilds the projections.
func GroupID(prefix string, boot time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, boot.UnixNano())
}

// NewClient connects to the brokers, consuming every stream from the earliest offset.
func NewClient(log *slog.Logger, brokers []string, groupID string, opts ...kgo.Opt) (*kgo.Client, error) {
	baseOpts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.WithLogger(NewLogger(log)),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordRetries(5),
		kgo.RequestRetries(5),
		kgo.ProducerOnDataLossDetected(func(topic string, partition int32) {
			log.Error("Kafka data loss detected", "topic", topic, "partition", partition)
		}),
		kgo.ConsumeTopics(Streams...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	client, err := kgo.NewClient(append(baseOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return client, nil
}
