package kafka

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type scriptedFetcher struct {
	batches []kgo.Fetches
}

func (f *scriptedFetcher) PollFetches(ctx context.Context) kgo.Fetches {
	if len(f.batches) == 0 {
		<-ctx.Done()
		return kgo.Fetches{}
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch
}

func fetches(topic string, partition int32, err error, records ...*kgo.Record) kgo.Fetches {
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      topic,
		Partitions: []kgo.FetchPartition{{Partition: partition, Err: err, Records: records}},
	}}}}
}

func TestReader_ServesRecordsOneByOne(t *testing.T) {
	req := require.New(t)
	r1 := &kgo.Record{Topic: "problems", Offset: 0, Value: []byte(`{}`)}
	r2 := &kgo.Record{Topic: "problems", Offset: 1, Value: []byte(`{}`)}
	r3 := &kgo.Record{Topic: "messages", Offset: 0, Value: []byte(`{}`)}
	fetcher := &scriptedFetcher{batches: []kgo.Fetches{
		fetches("problems", 0, nil, r1, r2),
		fetches("messages", 0, nil, r3),
	}}
	reader := NewReader(slog.Default(), fetcher)

	for _, want := range []*kgo.Record{r1, r2, r3} {
		got, err := reader.Next(context.Background())
		req.NoError(err)
		req.Same(want, got)
	}
}

func TestReader_FetchErrorsDoNotStopPolling(t *testing.T) {
	req := require.New(t)
	r1 := &kgo.Record{Topic: "problems", Offset: 4}
	fetcher := &scriptedFetcher{batches: []kgo.Fetches{
		fetches("problems", 0, kgo.ErrRecordTimeout),
		fetches("problems", 0, nil, r1),
	}}
	reader := NewReader(slog.Default(), fetcher)

	got, err := reader.Next(context.Background())

	req.NoError(err)
	req.Same(r1, got)
}

func TestReader_ClosedClientAndContext(t *testing.T) {
	req := require.New(t)

	closed := NewReader(slog.Default(), &scriptedFetcher{batches: []kgo.Fetches{
		fetches("", -1, kgo.ErrClientClosed),
	}})
	_, err := closed.Next(context.Background())
	req.ErrorIs(err, kgo.ErrClientClosed)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = NewReader(slog.Default(), &scriptedFetcher{}).Next(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestGroupID_IsUniquePerBoot(t *testing.T) {
	req := require.New(t)
	boot := time.Now()

	req.NotEqual(GroupID("problem-map", boot), GroupID("problem-map", boot.Add(time.Nanosecond)))
	req.Contains(GroupID("problem-map", boot), "problem-map-")
}

func TestLogger_FollowsSlogLevel(t *testing.T) {
	req := require.New(t)
	debug := slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelDebug}))
	warn := slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelWarn}))

	req.Equal(kgo.LogLevelDebug, NewLogger(debug).Level())
	req.Equal(kgo.LogLevelWarn, NewLogger(warn).Level())
}
