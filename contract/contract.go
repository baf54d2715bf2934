//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"problem-map/domain/chat"
	"problem-map/domain/event"
	"problem-map/domain/problem"

	"github.com/twmb/franz-go/pkg/kgo"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	AddCritical(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Failures() <-chan error
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives room notifications: a connected client, or a permanent projection.
type EventSink interface {
	Consume(ctx context.Context, n event.Notification) error
}

type IRegistry interface {
	GetSinksForRoom(room event.Room) []EventSink
	Subscribe(participantID string, room event.Room, sink EventSink)
	Unsubscribe(participantID string, room event.Room)
	Leave(participantID string)
}

// INotifier hands a snapshot over to the fan-out. It must never block the caller.
type INotifier interface {
	Notify(n event.Notification)
}

// LogProducer is the append side of the log. *kgo.Client satisfies it as is.
type LogProducer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// LogReader hands out records in delivery order, blocking until one is available.
type LogReader interface {
	Next(ctx context.Context) (*kgo.Record, error)
}

type IProblemStore interface {
	Get(id string) (problem.Problem, error)
	List() []problem.Problem
	Add(p problem.Problem) []problem.Problem
	Update(patch problem.Patch) ([]problem.Problem, error)
}

type IChatStore interface {
	Get(chatID string) []chat.Message
	Add(msg chat.Message) []chat.Message
	Update(patch chat.Patch) ([]chat.Message, error)
}

// IPublishHandle resolves once the log acknowledged (or refused) the envelope.
type IPublishHandle interface {
	EventID() string
	Done() <-chan struct{}
	Wait(ctx context.Context) error
}

type IPublisher interface {
	PublishInsert(ctx context.Context, p event.Payload) (IPublishHandle, error)
	PublishUpdate(ctx context.Context, p event.Payload) (IPublishHandle, error)
}
