package kafka

import (
	"context"
	"log/slog"

	"problem-map/contract"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Fetcher is the consuming side of *kgo.Client.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
}

var _ contract.LogReader = (*Reader)(nil)

// Reader turns polled batches into a record-at-a-time stream. Records of one
// partition keep their log order. Fetch errors are logged and polling goes on,
// franz-go retries them internally.
type Reader struct {
	log     *slog.Logger
	fetcher Fetcher
	pending []*kgo.Record
}

func NewReader(log *slog.Logger, fetcher Fetcher) *Reader {
	return &Reader{log: log, fetcher: fetcher}
}

func (r *Reader) Next(ctx context.Context) (*kgo.Record, error) {
	for len(r.pending) == 0 {
		fetches := r.fetcher.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil, kgo.ErrClientClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			r.log.Warn("Kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			r.pending = append(r.pending, record)
		})
	}
	record := r.pending[0]
	r.pending = r.pending[1:]
	return record, nil
}
