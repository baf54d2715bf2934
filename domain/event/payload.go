package event

import (
	"encoding/json"
	"fmt"
	"time"

	"problem-map/domain/chat"
	"problem-map/domain/problem"
	"problem-map/errors"
)

// Payload is the closed set of mutations an envelope can carry.
type Payload interface {
	Kind() Kind
	Type() Type
	// PartitionKey orders envelopes relative to one another within a stream.
	PartitionKey() string
}

type ProblemInserted struct{ Problem problem.Problem }

type ProblemUpdated struct{ Patch problem.Patch }

type MessageInserted struct{ Message chat.Message }

type MessageUpdated struct{ Patch chat.Patch }

// Unrecognized is what a consumer gets for a (kind, type) pair it does not know.
type Unrecognized struct {
	Stream Kind
	Event  Type
}

func (ProblemInserted) Kind() Kind             { return KindProblem }
func (ProblemInserted) Type() Type             { return Insert }
func (p ProblemInserted) PartitionKey() string { return p.Problem.ID }

func (ProblemUpdated) Kind() Kind             { return KindProblem }
func (ProblemUpdated) Type() Type             { return Update }
func (p ProblemUpdated) PartitionKey() string { return p.Patch.ID }

func (MessageInserted) Kind() Kind             { return KindMessage }
func (MessageInserted) Type() Type             { return Insert }
func (m MessageInserted) PartitionKey() string { return m.Message.ChatID }

func (MessageUpdated) Kind() Kind             { return KindMessage }
func (MessageUpdated) Type() Type             { return Update }
func (m MessageUpdated) PartitionKey() string { return m.Patch.ChatID }

func (u Unrecognized) Kind() Kind         { return u.Stream }
func (u Unrecognized) Type() Type         { return u.Event }
func (Unrecognized) PartitionKey() string { return "" }

type problemRecord struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Longitude   float64        `json:"long"`
	Latitude    float64        `json:"lat"`
	Status      problem.Status `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type problemPatchRecord struct {
	ID          string          `json:"id"`
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Longitude   *float64        `json:"long,omitempty"`
	Latitude    *float64        `json:"lat,omitempty"`
	Status      *problem.Status `json:"status,omitempty"`
}

type messageRecord struct {
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Hidden    bool      `json:"hidden"`
}

type messagePatchRecord struct {
	ChatID    string  `json:"chat_id"`
	MessageID string  `json:"message_id,omitempty"`
	Body      *string `json:"message,omitempty"`
	Rating    *int    `json:"rating,omitempty"`
	Hidden    *bool   `json:"hidden,omitempty"`
}

func marshalPayload(p Payload) (json.RawMessage, error) {
	var record any
	switch v := p.(type) {
	case ProblemInserted:
		record = problemRecord{
			ID:          v.Problem.ID,
			UserID:      v.Problem.UserID,
			Title:       v.Problem.Title,
			Description: v.Problem.Description,
			Longitude:   v.Problem.Longitude,
			Latitude:    v.Problem.Latitude,
			Status:      v.Problem.Status,
			CreatedAt:   v.Problem.CreatedAt.UTC(),
			UpdatedAt:   v.Problem.UpdatedAt.UTC(),
		}
	case ProblemUpdated:
		record = problemPatchRecord{
			ID:          v.Patch.ID,
			Title:       v.Patch.Title,
			Description: v.Patch.Description,
			Longitude:   v.Patch.Longitude,
			Latitude:    v.Patch.Latitude,
			Status:      v.Patch.Status,
		}
	case MessageInserted:
		record = messageRecord{
			ChatID:    v.Message.ChatID,
			MessageID: v.Message.MessageID,
			Author:    v.Message.Author,
			Rating:    v.Message.Rating,
			Body:      v.Message.Body,
			CreatedAt: v.Message.CreatedAt.UTC(),
			Hidden:    v.Message.Hidden,
		}
	case MessageUpdated:
		record = messagePatchRecord{
			ChatID:    v.Patch.ChatID,
			MessageID: v.Patch.MessageID,
			Body:      v.Patch.Body,
			Rating:    v.Patch.Rating,
			Hidden:    v.Patch.Hidden,
		}
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", errors.ErrInvalidPayload, p)
	}
	return json.Marshal(record)
}

// Payload decodes the data of the envelope according to the stream it was read from.
func (e Envelope) Payload(kind Kind) (Payload, error) {
	switch {
	case kind == KindProblem && e.Type == Insert:
		var r problemRecord
		if err := unmarshalData(e.Data, &r); err != nil {
			return nil, err
		}
		if r.ID == "" {
			return nil, fmt.Errorf("%w: problem insert without id", errors.ErrDecode)
		}
		if !r.Status.Valid() {
			return nil, fmt.Errorf("%w: problem %s has status %q", errors.ErrDecode, r.ID, r.Status)
		}
		return ProblemInserted{Problem: problem.Problem{
			ID:          r.ID,
			UserID:      r.UserID,
			Title:       r.Title,
			Description: r.Description,
			Longitude:   r.Longitude,
			Latitude:    r.Latitude,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt.UTC(),
			UpdatedAt:   r.UpdatedAt.UTC(),
		}}, nil
	case kind == KindProblem && e.Type == Update:
		var r problemPatchRecord
		if err := unmarshalData(e.Data, &r); err != nil {
			return nil, err
		}
		if r.ID == "" {
			return nil, fmt.Errorf("%w: problem update without id", errors.ErrDecode)
		}
		if r.Status != nil && !r.Status.Valid() {
			return nil, fmt.Errorf("%w: problem %s patched with status %q", errors.ErrDecode, r.ID, *r.Status)
		}
		return ProblemUpdated{Patch: problem.Patch{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Longitude:   r.Longitude,
			Latitude:    r.Latitude,
			Status:      r.Status,
		}}, nil
	case kind == KindMessage && e.Type == Insert:
		var r messageRecord
		if err := unmarshalData(e.Data, &r); err != nil {
			return nil, err
		}
		if r.ChatID == "" || r.MessageID == "" {
			return nil, fmt.Errorf("%w: message insert without chat_id or message_id", errors.ErrDecode)
		}
		return MessageInserted{Message: chat.Message{
			ChatID:    r.ChatID,
			MessageID: r.MessageID,
			Author:    r.Author,
			Body:      r.Body,
			Rating:    r.Rating,
			Hidden:    r.Hidden,
			CreatedAt: r.CreatedAt.UTC(),
		}}, nil
	case kind == KindMessage && e.Type == Update:
		var r messagePatchRecord
		if err := unmarshalData(e.Data, &r); err != nil {
			return nil, err
		}
		if r.ChatID == "" {
			return nil, fmt.Errorf("%w: message update without chat_id", errors.ErrDecode)
		}
		return MessageUpdated{Patch: chat.Patch{
			ChatID:    r.ChatID,
			MessageID: r.MessageID,
			Body:      r.Body,
			Rating:    r.Rating,
			Hidden:    r.Hidden,
		}}, nil
	default:
		return Unrecognized{Stream: kind, Event: e.Type}, nil
	}
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: envelope without data", errors.ErrDecode)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	return nil
}
