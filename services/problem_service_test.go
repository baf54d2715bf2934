package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"problem-map/auth"
	"problem-map/contract"
	"problem-map/domain/event"
	"problem-map/domain/problem"
	"problem-map/domain/search"
	"problem-map/errors"
	"problem-map/mocks"
	"problem-map/projection"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubSearcher struct {
	ids   []string
	err   error
	query *search.Query
}

func (s stubSearcher) Search(_ context.Context, q search.Query) ([]string, error) {
	if s.query != nil {
		*s.query = q
	}
	return s.ids, s.err
}

func acknowledged(ctrl *gomock.Controller, eventID string) *mocks.MockIPublishHandle {
	handle := mocks.NewMockIPublishHandle(ctrl)
	handle.EXPECT().EventID().Return(eventID).AnyTimes()
	handle.EXPECT().Wait(gomock.Any()).Return(nil)
	return handle
}

func TestProblemService_Create(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockIPublisher(ctrl)
	store := projection.NewProblemStore(discard, mocks.NewMockINotifier(ctrl))
	svc := NewProblemService(discard, store, publisher, stubSearcher{}, time.Second)

	// Given a valid request
	request := auth.CreateProblemRequest{
		Title:       "Broken street light",
		Description: "The light at the corner has been off for a week",
		Longitude:   lo.ToPtr(2.35),
		Latitude:    lo.ToPtr(48.85),
	}

	// Then a pending problem insert is published for the caller
	var published event.ProblemInserted
	publisher.EXPECT().PublishInsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p event.Payload) (contract.IPublishHandle, error) {
			published = p.(event.ProblemInserted)
			return acknowledged(ctrl, "e-1"), nil
		})

	// When it is created
	p, err := svc.Create(context.Background(), "user-7", request)

	req.NoError(err)
	req.Equal(published.Problem, p)
	req.Equal("user-7", p.UserID)
	req.Equal(problem.Pending, p.Status)
	req.NotEmpty(p.ID)

	// And the store is left to the applier
	req.Empty(svc.List())
}

func TestProblemService_Create_Invalid(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockIPublisher(ctrl)
	publisher.EXPECT().PublishInsert(gomock.Any(), gomock.Any()).Times(0)
	svc := NewProblemService(discard, mocks.NewMockIProblemStore(ctrl), publisher, stubSearcher{}, time.Second)

	_, err := svc.Create(context.Background(), "user-7", auth.CreateProblemRequest{Title: "Hole"})

	req.ErrorIs(err, errors.ErrValidation)
}

func TestProblemService_Create_NotAcknowledged(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockIPublisher(ctrl)
	svc := NewProblemService(discard, mocks.NewMockIProblemStore(ctrl), publisher, stubSearcher{}, 20*time.Millisecond)

	// Given a log that never answers
	handle := mocks.NewMockIPublishHandle(ctrl)
	handle.EXPECT().EventID().Return("e-slow").AnyTimes()
	handle.EXPECT().Wait(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	publisher.EXPECT().PublishInsert(gomock.Any(), gomock.Any()).Return(handle, nil)

	_, err := svc.Create(context.Background(), "user-7", auth.CreateProblemRequest{
		Title:       "Broken street light",
		Description: "The light at the corner has been off for a week",
		Longitude:   lo.ToPtr(2.35),
		Latitude:    lo.ToPtr(48.85),
	})

	// Then the caller gets a transport failure
	req.ErrorIs(err, errors.ErrTransport)
}

func TestProblemService_Update(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockINotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any()).AnyTimes()
	store := projection.NewProblemStore(discard, notifier)
	existing := problem.New("user-7", "Broken street light", "The light at the corner has been off for a week", 2.35, 48.85, time.Now())
	store.Add(existing)

	t.Run("publishes the changed fields only", func(t *testing.T) {
		req := require.New(t)
		publisher := mocks.NewMockIPublisher(ctrl)
		svc := NewProblemService(discard, store, publisher, stubSearcher{}, time.Second)

		publisher.EXPECT().PublishUpdate(gomock.Any(), event.ProblemUpdated{
			Patch: problem.Patch{ID: existing.ID, Status: lo.ToPtr(problem.Open)},
		}).Return(acknowledged(ctrl, "e-2"), nil)

		eventID, err := svc.Update(context.Background(), auth.UpdateProblemRequest{ID: existing.ID, Status: lo.ToPtr("open")})

		req.NoError(err)
		req.Equal("e-2", eventID)
	})

	t.Run("unknown problem is not found", func(t *testing.T) {
		req := require.New(t)
		publisher := mocks.NewMockIPublisher(ctrl)
		publisher.EXPECT().PublishUpdate(gomock.Any(), gomock.Any()).Times(0)
		svc := NewProblemService(discard, store, publisher, stubSearcher{}, time.Second)

		_, err := svc.Update(context.Background(), auth.UpdateProblemRequest{
			ID:     "0b5f3ad4-8a4c-4b8e-9d6c-4f6f2f0e1a11",
			Status: lo.ToPtr("open"),
		})

		req.ErrorIs(err, errors.ErrNotFound)
	})

	t.Run("empty update is rejected", func(t *testing.T) {
		req := require.New(t)
		publisher := mocks.NewMockIPublisher(ctrl)
		publisher.EXPECT().PublishUpdate(gomock.Any(), gomock.Any()).Times(0)
		svc := NewProblemService(discard, store, publisher, stubSearcher{}, time.Second)

		_, err := svc.Update(context.Background(), auth.UpdateProblemRequest{ID: existing.ID})

		req.ErrorIs(err, errors.ErrValidation)
	})
}

func TestProblemService_Search(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockINotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any()).AnyTimes()
	store := projection.NewProblemStore(discard, notifier)
	light := problem.New("u", "Broken street light", "The light at the corner has been off for a week", 2.35, 48.85, time.Now())
	bench := problem.New("u", "Broken bench", "The bench in the park lost two of its planks", 2.36, 48.86, time.Now())
	store.Add(light)
	store.Add(bench)

	// Given a hit that the projection has not caught up with yet
	var query search.Query
	svc := NewProblemService(discard, store, mocks.NewMockIPublisher(ctrl),
		stubSearcher{ids: []string{bench.ID, "not-applied-yet", light.ID}, query: &query}, time.Second)

	found, err := svc.Search(context.Background(), "broken --status pending", 10)
	req.Equal("broken", query.Terms)
	req.Equal("pending", query.Status)
	req.Equal(10, query.Limit)

	// Then results keep the relevance order and skip the unknown id
	req.NoError(err)
	req.Len(found, 2)
	req.Equal(bench.ID, found[0].ID)
	req.Equal(light.ID, found[1].ID)
}
