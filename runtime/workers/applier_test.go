package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"problem-map/domain/chat"
	"problem-map/domain/event"
	"problem-map/domain/problem"
	"problem-map/errors"
	"problem-map/mocks"
	"problem-map/projection"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/mock/gomock"
)

type channelReader struct {
	records chan *kgo.Record
}

func newChannelReader(records ...*kgo.Record) *channelReader {
	r := &channelReader{records: make(chan *kgo.Record, 64)}
	for _, rec := range records {
		r.records <- rec
	}
	return r
}

func (r *channelReader) Next(ctx context.Context) (*kgo.Record, error) {
	select {
	case rec := <-r.records:
		return rec, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(event.Notification) {}

func record(t *testing.T, offset int64, payload event.Payload) *kgo.Record {
	_, raw, err := event.Encode(payload, time.Now())
	require.NoError(t, err)
	return &kgo.Record{Topic: string(payload.Kind()), Key: []byte(payload.PartitionKey()), Value: raw, Offset: offset}
}

type applierFixture struct {
	applier  *Applier
	problems *projection.ProblemStore
	chats    *projection.ChatStore
	cancel   context.CancelFunc
	result   chan error
}

func startApplier(t *testing.T, reader *channelReader, policy DecodePolicy) *applierFixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	problems := projection.NewProblemStore(log, discardNotifier{})
	chats := projection.NewChatStore(log, discardNotifier{})
	applier := NewApplier(log, reader, problems, chats, policy)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- applier.Run(ctx) }()
	t.Cleanup(cancel)
	return &applierFixture{applier: applier, problems: problems, chats: chats, cancel: cancel, result: result}
}

func (f *applierFixture) waitProcessed(t *testing.T, n uint64) {
	require.Eventually(t, func() bool {
		return f.applier.Applied()+f.applier.Skipped() >= n
	}, time.Second, 5*time.Millisecond)
}

func TestApplier_ProblemLifecycle(t *testing.T) {
	req := require.New(t)
	p1 := problem.New("42", "Pothole on Main St", "A deep pothole right in front of the bakery", 2.35, 48.85, time.Now())

	// Given P1 is inserted then its status changed to open
	reader := newChannelReader(
		record(t, 0, event.ProblemInserted{Problem: p1}),
		record(t, 1, event.ProblemUpdated{Patch: problem.Patch{ID: p1.ID, Status: lo.ToPtr(problem.Open)}}),
	)

	// When the applier consumes the log
	f := startApplier(t, reader, DecodeSkip)
	f.waitProcessed(t, 2)

	// Then P1 is open and kept its title
	got, err := f.problems.Get(p1.ID)
	req.NoError(err)
	req.Equal(problem.Open, got.Status)
	req.Equal("Pothole on Main St", got.Title)
	req.True(got.UpdatedAt.After(got.CreatedAt))
	req.Equal(uint64(2), f.applier.Applied())

	// And a clean stop is not a crash
	f.cancel()
	req.NoError(<-f.result)
	req.Equal(Stopped, f.applier.State())
}

func TestApplier_MessageLifecycle(t *testing.T) {
	req := require.New(t)
	m1 := chat.New("c1", "7", "The pothole is getting bigger", time.Now())
	reader := newChannelReader(
		record(t, 0, event.MessageInserted{Message: m1}),
		record(t, 1, event.MessageUpdated{Patch: chat.Patch{ChatID: "c1", MessageID: m1.MessageID, Hidden: lo.ToPtr(true)}}),
	)

	f := startApplier(t, reader, DecodeSkip)
	f.waitProcessed(t, 2)

	messages := f.chats.Get("c1")
	req.Len(messages, 1)
	req.True(messages[0].Hidden)
	req.Equal(m1.Body, messages[0].Body)
}

func TestApplier_UnknownTargetDoesNotStopProcessing(t *testing.T) {
	req := require.New(t)
	p2 := problem.New("42", "Broken streetlight", "The streetlight has been off for a week now", 2.3, 48.8, time.Now())

	// Given an update for an unknown problem followed by a valid insert
	reader := newChannelReader(
		record(t, 0, event.ProblemUpdated{Patch: problem.Patch{ID: "unknown", Status: lo.ToPtr(problem.Closed)}}),
		record(t, 1, event.MessageUpdated{Patch: chat.Patch{ChatID: "c9", MessageID: "deadbeef", Rating: lo.ToPtr(3)}}),
		record(t, 2, event.ProblemInserted{Problem: p2}),
	)

	f := startApplier(t, reader, DecodeStrict)
	f.waitProcessed(t, 3)

	// Then the applier keeps running and the insert is applied
	req.Equal(Running, f.applier.State())
	req.Equal(uint64(2), f.applier.Skipped())
	_, err := f.problems.Get(p2.ID)
	req.NoError(err)
	req.Equal(0, f.chats.Len())
}

func TestApplier_RedeliveredInsertIsIdempotent(t *testing.T) {
	req := require.New(t)
	p1 := problem.New("42", "Pothole on Main St", "A deep pothole right in front of the bakery", 2.35, 48.85, time.Now())
	insert := record(t, 0, event.ProblemInserted{Problem: p1})
	reader := newChannelReader(insert, insert)

	f := startApplier(t, reader, DecodeSkip)
	f.waitProcessed(t, 2)

	req.Len(f.problems.List(), 1)
}

func TestApplier_RedeliveredInsertAfterUpdateKeepsUpdate(t *testing.T) {
	req := require.New(t)
	p1 := problem.New("42", "Pothole on Main St", "A deep pothole right in front of the bakery", 2.35, 48.85, time.Now())
	insert := record(t, 0, event.ProblemInserted{Problem: p1})
	update := record(t, 1, event.ProblemUpdated{Patch: problem.Patch{ID: p1.ID, Status: lo.ToPtr(problem.Open)}})
	reader := newChannelReader(insert, update, insert)

	f := startApplier(t, reader, DecodeSkip)
	f.waitProcessed(t, 3)

	got, err := f.problems.Get(p1.ID)
	req.NoError(err)
	req.Equal(problem.Open, got.Status)
	req.True(got.UpdatedAt.After(got.CreatedAt))
}

func TestApplier_UnrecognizedEnvelopeIsSkipped(t *testing.T) {
	req := require.New(t)
	deleted, err := json.Marshal(map[string]any{
		"event_id": "e1", "version": 1, "type": "delete", "created_at": time.Now().UTC(),
		"data": map[string]any{"id": "p1"},
	})
	req.NoError(err)
	p1 := problem.New("42", "Pothole on Main St", "A deep pothole right in front of the bakery", 2.35, 48.85, time.Now())

	reader := newChannelReader(
		&kgo.Record{Topic: "problems", Value: deleted},
		&kgo.Record{Topic: "comments", Value: deleted},
		record(t, 2, event.ProblemInserted{Problem: p1}),
	)

	f := startApplier(t, reader, DecodeStrict)
	f.waitProcessed(t, 3)

	req.Equal(uint64(2), f.applier.Skipped())
	req.Len(f.problems.List(), 1)
}

func TestApplier_DecodePolicy(t *testing.T) {
	p1 := problem.New("42", "Pothole on Main St", "A deep pothole right in front of the bakery", 2.35, 48.85, time.Now())

	t.Run("skip keeps the applier running", func(t *testing.T) {
		req := require.New(t)
		reader := newChannelReader(
			&kgo.Record{Topic: "problems", Value: []byte("{not json")},
			record(t, 1, event.ProblemInserted{Problem: p1}),
		)
		f := startApplier(t, reader, DecodeSkip)
		f.waitProcessed(t, 2)

		req.Equal(Running, f.applier.State())
		req.Len(f.problems.List(), 1)
	})

	t.Run("strict crashes the applier", func(t *testing.T) {
		req := require.New(t)
		reader := newChannelReader(
			&kgo.Record{Topic: "problems", Value: []byte("{not json")},
			record(t, 1, event.ProblemInserted{Problem: p1}),
		)
		f := startApplier(t, reader, DecodeStrict)

		err := <-f.result
		req.ErrorIs(err, errors.ErrApplierCrashed)
		req.Equal(Crashed, f.applier.State())
		req.Empty(f.problems.List())
	})
}

func TestApplier_ReaderFailureCrashes(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockLogReader(ctrl)
	reader.EXPECT().Next(gomock.Any()).Return(nil, kgo.ErrClientClosed).Times(1)

	applier := NewApplier(slog.Default(), reader,
		projection.NewProblemStore(slog.Default(), discardNotifier{}),
		projection.NewChatStore(slog.Default(), discardNotifier{}),
		DecodeSkip)

	var mu sync.Mutex
	var states []ApplierState
	applier.OnStateChange(func(s ApplierState) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	err := applier.Run(context.Background())

	req.ErrorIs(err, errors.ErrApplierCrashed)
	req.Equal([]ApplierState{Starting, Running, Crashed}, states)
}

func TestParseDecodePolicy(t *testing.T) {
	req := require.New(t)
	p, err := ParseDecodePolicy("strict")
	req.NoError(err)
	req.Equal(DecodeStrict, p)

	_, err = ParseDecodePolicy("lenient")
	req.ErrorIs(err, errors.ErrValidation)
}
