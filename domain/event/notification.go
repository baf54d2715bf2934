package event

import (
	"time"

	"problem-map/domain/chat"
	"problem-map/domain/problem"
)

// Room is a real-time subscription scope: one per chat, plus the shared map.
type Room string

const MapRoom Room = "map"

func ChatRoom(chatID string) Room { return Room(chatID) }

type Name string

const (
	NewProblem Name = "new_problem"
	NewMessage Name = "new_message"
	MapJoined  Name = "map_joined"
	Joined     Name = "joined"
	Failure    Name = "error"
)

// Notification carries the complete visible state of one room, never a diff,
// so late joiners and existing subscribers converge on the same view.
// Revision grows with every mutation of the store the snapshot was taken from.
type Notification struct {
	Room     Room
	Name     Name
	Payload  any
	Revision uint64
	At       time.Time
}

func ProblemsChanged(snapshot []problem.Problem, revision uint64) Notification {
	return Notification{
		Room:     MapRoom,
		Name:     NewProblem,
		Payload:  ToProblemViews(snapshot),
		Revision: revision,
		At:       time.Now().UTC(),
	}
}

func ChatChanged(chatID string, snapshot []chat.Message, revision uint64) Notification {
	return Notification{
		Room:     ChatRoom(chatID),
		Name:     NewMessage,
		Payload:  ToMessageViews(snapshot),
		Revision: revision,
		At:       time.Now().UTC(),
	}
}
