package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"problem-map/contract"
	"problem-map/domain/event"
	"problem-map/errors"

	"github.com/twmb/franz-go/pkg/kgo"
)

type ApplierState int32

const (
	Stopped ApplierState = iota
	Starting
	Running
	Crashed
)

func (s ApplierState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Crashed:
		return "crashed"
	default:
		return fmt.Sprintf("ApplierState(%d)", int32(s))
	}
}

// DecodePolicy decides what a malformed envelope does to the applier.
type DecodePolicy string

const (
	// DecodeStrict crashes the applier on the first envelope it cannot decode.
	DecodeStrict DecodePolicy = "strict"
	// DecodeSkip logs the envelope and moves on to the next one.
	DecodeSkip DecodePolicy = "skip"
)

func ParseDecodePolicy(raw string) (DecodePolicy, error) {
	switch p := DecodePolicy(raw); p {
	case DecodeStrict, DecodeSkip:
		return p, nil
	default:
		return "", fmt.Errorf("decode policy %q: %w", raw, errors.ErrValidation)
	}
}

var _ contract.Worker = (*Applier)(nil)

// Applier is the only writer of the projections. It reads the log in delivery order
// and dispatches every envelope on its (type, stream) pair. It runs once per process:
// when Run returns for any reason other than ctx, no further change will be observed.
type Applier struct {
	log      *slog.Logger
	reader   contract.LogReader
	problems contract.IProblemStore
	chats    contract.IChatStore
	policy   DecodePolicy

	state   atomic.Int32
	applied atomic.Uint64
	skipped atomic.Uint64

	mu        sync.Mutex
	listeners []func(ApplierState)
}

func NewApplier(
	log *slog.Logger,
	reader contract.LogReader,
	problems contract.IProblemStore,
	chats contract.IChatStore,
	policy DecodePolicy,
) *Applier {
	return &Applier{log: log, reader: reader, problems: problems, chats: chats, policy: policy}
}

// OnStateChange registers fn to be called on every transition, from the applier goroutine.
func (a *Applier) OnStateChange(fn func(ApplierState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

func (a *Applier) State() ApplierState { return ApplierState(a.state.Load()) }

// Applied and Skipped count envelopes since the start of the process.
func (a *Applier) Applied() uint64 { return a.applied.Load() }
func (a *Applier) Skipped() uint64 { return a.skipped.Load() }

func (a *Applier) Run(ctx context.Context) error {
	a.setState(Starting)
	a.log.Info("Applier starting", "decode_policy", string(a.policy))
	a.setState(Running)

	for {
		record, err := a.reader.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				a.setState(Stopped)
				a.log.Info("Applier stopped", "applied", a.Applied(), "skipped", a.Skipped())
				return nil
			}
			a.setState(Crashed)
			return fmt.Errorf("%w: reading the log: %v", errors.ErrApplierCrashed, err)
		}
		if err := a.Apply(record); err != nil {
			a.setState(Crashed)
			return fmt.Errorf("%w: stream %s offset %d: %v", errors.ErrApplierCrashed, record.Topic, record.Offset, err)
		}
	}
}

// Apply decodes one record and hands it to the matching store. It only returns
// an error for what must stop the applier.
func (a *Applier) Apply(record *kgo.Record) error {
	kind := event.Kind(record.Topic)
	env, payload, err := event.DecodePayload(kind, record.Value)
	if err != nil {
		if a.policy == DecodeStrict {
			return err
		}
		a.skip("Undecodable envelope skipped", record, "error", err)
		return nil
	}

	log := a.log.With("stream", record.Topic, "offset", record.Offset, "event_id", env.ID)
	switch p := payload.(type) {
	case event.ProblemInserted:
		a.problems.Add(p.Problem)
	case event.ProblemUpdated:
		if _, err := a.problems.Update(p.Patch); err != nil {
			return a.handleUpdateError(log, record, err)
		}
	case event.MessageInserted:
		a.chats.Add(p.Message)
	case event.MessageUpdated:
		if _, err := a.chats.Update(p.Patch); err != nil {
			return a.handleUpdateError(log, record, err)
		}
	default:
		a.skip("Unrecognized envelope skipped", record, "event_id", env.ID, "type", string(env.Type))
		return nil
	}
	a.applied.Add(1)
	log.Debug("Envelope applied", "type", string(env.Type))
	return nil
}

func (a *Applier) handleUpdateError(log *slog.Logger, record *kgo.Record, err error) error {
	if errors.Is(err, errors.ErrNotFound) {
		a.skipped.Add(1)
		log.Warn("Update for an unknown target skipped", "key", string(record.Key), "error", err)
		return nil
	}
	return err
}

func (a *Applier) skip(msg string, record *kgo.Record, args ...any) {
	a.skipped.Add(1)
	args = append([]any{"stream", record.Topic, "offset", record.Offset}, args...)
	a.log.Warn(msg, args...)
}

func (a *Applier) setState(s ApplierState) {
	a.state.Store(int32(s))
	a.mu.Lock()
	listeners := append([]func(ApplierState){}, a.listeners...)
	a.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}
