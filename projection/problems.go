// Package projection builds the in-memory view of the log.
// The applier is the only writer; every reader gets a defensive copy.
package projection

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"problem-map/contract"
	"problem-map/domain/event"
	"problem-map/domain/problem"
	"problem-map/errors"
)

var _ contract.IProblemStore = (*ProblemStore)(nil)

// ProblemStore keeps every known problem in insertion order behind a single lock.
type ProblemStore struct {
	mu       sync.Mutex
	log      *slog.Logger
	notifier contract.INotifier
	now      func() time.Time
	index    map[string]int
	problems []problem.Problem
	revision uint64
}

func NewProblemStore(log *slog.Logger, notifier contract.INotifier) *ProblemStore {
	return &ProblemStore{
		log:      log,
		notifier: notifier,
		now:      time.Now,
		index:    make(map[string]int),
	}
}

func (s *ProblemStore) Get(id string) (problem.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return problem.Problem{}, fmt.Errorf("problem %s: %w", id, errors.ErrNotFound)
	}
	return s.problems[i], nil
}

func (s *ProblemStore) List() []problem.Problem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *ProblemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.problems)
}

// Add inserts p. A redelivered insert for a known id never touches the stored
// problem, so updates applied since the first delivery survive.
func (s *ProblemStore) Add(p problem.Problem) []problem.Problem {
	s.mu.Lock()
	if i, known := s.index[p.ID]; known {
		current := s.problems[i]
		snapshot := s.snapshot()
		s.mu.Unlock()
		if sameProblem(current, p) {
			s.log.Debug("Duplicate problem insert ignored", "problem_id", p.ID)
		} else {
			s.log.Warn("Problem insert redelivered with different data, keeping the known state", "problem_id", p.ID)
		}
		return snapshot
	}
	s.index[p.ID] = len(s.problems)
	s.problems = append(s.problems, p)
	s.revision++
	snapshot, revision := s.snapshot(), s.revision
	s.mu.Unlock()

	s.notifier.Notify(event.ProblemsChanged(snapshot, revision))
	return snapshot
}

func (s *ProblemStore) Update(patch problem.Patch) ([]problem.Problem, error) {
	s.mu.Lock()
	i, ok := s.index[patch.ID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("problem %s: %w", patch.ID, errors.ErrNotFound)
	}
	s.problems[i] = problem.Merge(s.problems[i], patch, s.now())
	s.revision++
	snapshot, revision := s.snapshot(), s.revision
	s.mu.Unlock()

	s.notifier.Notify(event.ProblemsChanged(snapshot, revision))
	return snapshot, nil
}

// Snapshot returns every problem together with the revision it reflects.
func (s *ProblemStore) Snapshot() ([]problem.Problem, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), s.revision
}

// snapshot must be called with the lock held.
func (s *ProblemStore) snapshot() []problem.Problem {
	out := make([]problem.Problem, len(s.problems))
	copy(out, s.problems)
	return out
}

func sameProblem(a, b problem.Problem) bool {
	return a.ID == b.ID && a.UserID == b.UserID && a.Title == b.Title &&
		a.Description == b.Description && a.Longitude == b.Longitude &&
		a.Latitude == b.Latitude && a.Status == b.Status &&
		a.CreatedAt.Equal(b.CreatedAt) && a.UpdatedAt.Equal(b.UpdatedAt)
}
