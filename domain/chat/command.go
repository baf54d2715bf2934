package chat

import (
	"time"
)

type PostMessageCommand struct {
	ChatID    string
	UserID    string
	Body      string
	CreatedAt time.Time
}

// UpdateMessageCommand is what a participant may change on a message after posting it.
type UpdateMessageCommand struct {
	ChatID    string
	MessageID string
	Body      *string
	Rating    *int
	Hidden    *bool
}

func (c UpdateMessageCommand) ToPatch() Patch {
	return Patch{
		ChatID:    c.ChatID,
		MessageID: c.MessageID,
		Body:      c.Body,
		Rating:    c.Rating,
		Hidden:    c.Hidden,
	}
}
