// Package runtime wires the log, the projections and the fan-out together and owns their lifecycle.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"problem-map/contract"
	"problem-map/domain/event"
	"problem-map/projection"
	"problem-map/runtime/workers"
)

// Orchestrator owns the stores, the single applier and the fan-out. Stores are
// written by the applier only; everything else reads snapshots.
type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	supervisor     contract.ISupervisor
	registry       *Registry
	notifier       *workers.ChannelNotifier
	problems       *projection.ProblemStore
	chats          *projection.ChatStore
	applier        *workers.Applier
	permanentSinks []contract.EventSink
	extraWorkers   []contract.Worker
	sinkTimeout    time.Duration

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	registry *Registry,
	reader contract.LogReader,
	policy workers.DecodePolicy,
	bufferSize int,
	sinkTimeout time.Duration,
) *Orchestrator {
	notifier := workers.NewChannelNotifier(log, bufferSize)
	problems := projection.NewProblemStore(log, notifier)
	chats := projection.NewChatStore(log, notifier)
	return &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		registry:    registry,
		notifier:    notifier,
		problems:    problems,
		chats:       chats,
		applier:     workers.NewApplier(log, reader, problems, chats, policy),
		sinkTimeout: sinkTimeout,
		done:        make(chan struct{}),
	}
}

// Add registers permanent sinks. They must be added before Start.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// AddWorkers registers auxiliary workers restarted by the supervisor on failure.
func (o *Orchestrator) AddWorkers(w ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.extraWorkers = append(o.extraWorkers, w...)
}

// OnApplierStateChange forwards applier transitions, e.g. to the health service.
func (o *Orchestrator) OnApplierStateChange(fn func(workers.ApplierState)) {
	o.applier.OnStateChange(fn)
}

// Start launches the supervised workers and returns without waiting for them.
// It can only be called once.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true
	fanout := workers.NewEventFanout(o.log, o.notifier.Notifications(), o.registry, o.sinkTimeout, o.permanentSinks...)
	o.supervisor.Add(fanout)
	o.supervisor.Add(o.extraWorkers...)
	o.supervisor.AddCritical(o.applier)

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	go func() {
		defer close(o.done)
		o.supervisor.Run(runCtx)
	}()
	return nil
}

// Stop cancels every worker and waits for them to return.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.mu.Lock()
	started, cancel := o.started, o.cancel
	o.mu.Unlock()
	if !started {
		return
	}
	o.supervisor.Stop()
	cancel()
	<-o.done
	o.log.Debug("Orchestrator stopped")
}

// IsRunning reports whether the applier is still consuming the log.
func (o *Orchestrator) IsRunning() bool {
	return o.applier.State() == workers.Running
}

func (o *Orchestrator) ApplierState() workers.ApplierState { return o.applier.State() }

// Failures delivers the exit of the applier, after which the process is blind to the log.
func (o *Orchestrator) Failures() <-chan error { return o.supervisor.Failures() }

// Done is closed once every worker returned.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

func (o *Orchestrator) Problems() contract.IProblemStore { return o.problems }

func (o *Orchestrator) Chats() contract.IChatStore { return o.chats }

// JoinRoom subscribes the sink to a room and returns the current state of that room.
// The subscription happens first, so no change can slip between the snapshot and
// the first notification. Queued notifications older than the returned revision
// are left for the caller to drop.
func (o *Orchestrator) JoinRoom(participantID string, room event.Room, sink contract.EventSink) event.Notification {
	o.registry.Subscribe(participantID, room, sink)
	now := time.Now().UTC()
	if room == event.MapRoom {
		problems, revision := o.problems.Snapshot()
		return event.Notification{Room: room, Name: event.MapJoined, Payload: event.ToProblemViews(problems), Revision: revision, At: now}
	}
	messages, revision := o.chats.Snapshot(string(room))
	return event.Notification{Room: room, Name: event.Joined, Payload: event.ToMessageViews(messages), Revision: revision, At: now}
}

func (o *Orchestrator) LeaveRoom(participantID string, room event.Room) {
	o.registry.Unsubscribe(participantID, room)
}

// Disconnect removes the participant from every room.
func (o *Orchestrator) Disconnect(participantID string) {
	o.registry.Leave(participantID)
}

// Gauges exposes the sizes worth sampling periodically.
func (o *Orchestrator) Gauges() []workers.Gauge {
	return []workers.Gauge{
		{Name: "problems", Value: func() int64 { return int64(o.problems.Len()) }},
		{Name: "chats", Value: func() int64 { return int64(o.chats.Len()) }},
		{Name: "rooms", Value: func() int64 { return int64(o.registry.Rooms()) }},
		{Name: "notification_queue", Value: func() int64 { return int64(o.notifier.Len()) }},
		{Name: "applied", Value: func() int64 { return int64(o.applier.Applied()) }},
		{Name: "skipped", Value: func() int64 { return int64(o.applier.Skipped()) }},
	}
}
