package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"problem-map/auth"
	"problem-map/contract"
	"problem-map/domain/event"
	"problem-map/domain/problem"
	"problem-map/domain/search"
	"problem-map/errors"
)

// Searcher finds problem ids, best match first.
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]string, error)
}

// ProblemService validates requests, publishes them to the log and reads the projection.
// Writes never touch the store: they become visible once the applier consumed them.
type ProblemService struct {
	log            *slog.Logger
	store          contract.IProblemStore
	publisher      contract.IPublisher
	searcher       Searcher
	publishTimeout time.Duration
	now            func() time.Time
}

func NewProblemService(
	log *slog.Logger,
	store contract.IProblemStore,
	publisher contract.IPublisher,
	searcher Searcher,
	publishTimeout time.Duration,
) *ProblemService {
	return &ProblemService{
		log:            log,
		store:          store,
		publisher:      publisher,
		searcher:       searcher,
		publishTimeout: publishTimeout,
		now:            time.Now,
	}
}

func (s *ProblemService) List() []problem.Problem {
	return s.store.List()
}

func (s *ProblemService) Get(id string) (problem.Problem, error) {
	return s.store.Get(id)
}

// Search returns the matching problems in relevance order. The text may carry
// "--status" and "--limit" flags. Hits not yet in the projection are left out.
func (s *ProblemService) Search(ctx context.Context, text string, limit int) ([]problem.Problem, error) {
	ids, err := s.searcher.Search(ctx, search.NewSearchQuery(text, limit))
	if err != nil {
		return nil, err
	}
	found := make([]problem.Problem, 0, len(ids))
	for _, id := range ids {
		if p, err := s.store.Get(id); err == nil {
			found = append(found, p)
		}
	}
	return found, nil
}

func (s *ProblemService) Create(ctx context.Context, userID string, req auth.CreateProblemRequest) (problem.Problem, error) {
	if err := auth.Validate(req); err != nil {
		return problem.Problem{}, err
	}
	p := problem.New(userID, req.Title, req.Description, *req.Longitude, *req.Latitude, s.now())
	handle, err := s.publisher.PublishInsert(ctx, event.ProblemInserted{Problem: p})
	if err != nil {
		return problem.Problem{}, err
	}
	if err := s.await(ctx, handle); err != nil {
		return problem.Problem{}, err
	}
	s.log.Debug("Problem published", "problem_id", p.ID, "event_id", handle.EventID())
	return p, nil
}

// Update publishes the changed fields of a known problem and returns the event id.
func (s *ProblemService) Update(ctx context.Context, req auth.UpdateProblemRequest) (string, error) {
	if err := auth.Validate(req); err != nil {
		return "", err
	}
	if _, err := s.store.Get(req.ID); err != nil {
		return "", err
	}
	patch := problem.Patch{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		Longitude:   req.Longitude,
		Latitude:    req.Latitude,
	}
	if req.Status != nil {
		status, err := problem.ParseStatus(*req.Status)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errors.ErrValidation, err)
		}
		patch.Status = &status
	}
	if patch.Empty() {
		return "", fmt.Errorf("%w: nothing to update", errors.ErrValidation)
	}

	handle, err := s.publisher.PublishUpdate(ctx, event.ProblemUpdated{Patch: patch})
	if err != nil {
		return "", err
	}
	if err := s.await(ctx, handle); err != nil {
		return "", err
	}
	return handle.EventID(), nil
}

func (s *ProblemService) await(ctx context.Context, handle contract.IPublishHandle) error {
	return awaitPublish(ctx, handle, s.publishTimeout)
}

// awaitPublish waits for the log acknowledgement, at most timeout.
func awaitPublish(ctx context.Context, handle contract.IPublishHandle, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := handle.Wait(waitCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("event %s not acknowledged in %s: %w", handle.EventID(), timeout, errors.ErrTransport)
		}
		return err
	}
	return nil
}
