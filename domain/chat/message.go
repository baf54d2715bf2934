// Package chat contains the messages posted under a problem.
// A chat shares its id with the problem it belongs to.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message is addressed by its chat id and a short id unique within that chat.
type Message struct {
	ChatID    string
	MessageID string
	Author    string
	Body      string
	Rating    int
	Hidden    bool
	CreatedAt time.Time
}

type Key struct {
	ChatID    string
	MessageID string
}

func (m Message) Key() Key {
	return Key{ChatID: m.ChatID, MessageID: m.MessageID}
}

// NewMessageID returns an 8 character id, short enough to be unique only within one chat.
func NewMessageID() string {
	return uuid.NewString()[:8]
}

func New(chatID, author, body string, now time.Time) Message {
	return Message{
		ChatID:    chatID,
		MessageID: NewMessageID(),
		Author:    author,
		Body:      body,
		CreatedAt: now.UTC(),
	}
}

// Patch carries a sparse update addressed by chat id and message id.
type Patch struct {
	ChatID    string
	MessageID string
	Body      *string
	Rating    *int
	Hidden    *bool
}

func (p Patch) Key() Key {
	return Key{ChatID: p.ChatID, MessageID: p.MessageID}
}

func (p Patch) Empty() bool {
	return p.Body == nil && p.Rating == nil && p.Hidden == nil
}

// Merge applies patch on current. Chat id, message id, author and creation time are immutable.
func Merge(current Message, patch Patch) Message {
	updated := current
	if patch.Body != nil {
		updated.Body = *patch.Body
	}
	if patch.Rating != nil {
		updated.Rating = *patch.Rating
	}
	if patch.Hidden != nil {
		updated.Hidden = *patch.Hidden
	}
	return updated
}

// Equal compares two messages, ignoring the monotonic clock reading of CreatedAt.
func Equal(a, b Message) bool {
	return a.ChatID == b.ChatID && a.MessageID == b.MessageID && a.Author == b.Author &&
		a.Body == b.Body && a.Rating == b.Rating && a.Hidden == b.Hidden &&
		a.CreatedAt.Equal(b.CreatedAt)
}
