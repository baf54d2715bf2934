// Package event defines the envelope every mutation travels in through the log,
// the typed payloads it decodes into, and the notifications pushed to rooms.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"problem-map/errors"

	"github.com/google/uuid"
)

// Kind names the aggregate an envelope belongs to. It doubles as the stream name.
type Kind string

const (
	KindProblem Kind = "problems"
	KindMessage Kind = "messages"
)

type Type string

const (
	Insert Type = "insert"
	Update Type = "update"
)

const SchemaVersion = 1

// Envelope is immutable once published. ID identifies one publish and is meant for
// deduplication and tracing, never for ordering.
type Envelope struct {
	ID        string          `json:"event_id"`
	Version   int             `json:"version"`
	Type      Type            `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// Encode wraps the payload into a fresh envelope and serializes it.
func Encode(p Payload, now time.Time) (Envelope, []byte, error) {
	data, err := marshalPayload(p)
	if err != nil {
		return Envelope{}, nil, err
	}
	env := Envelope{
		ID:        uuid.NewString(),
		Version:   SchemaVersion,
		Type:      p.Type(),
		CreatedAt: now.UTC(),
		Data:      data,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, nil, err
	}
	return env, raw, nil
}

// Decode parses the envelope header. The payload stays raw until Payload is called.
func Decode(raw []byte) (Envelope, error) {
	if len(raw) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty value", errors.ErrDecode)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	if env.Version < 1 {
		return Envelope{}, fmt.Errorf("%w: missing schema version", errors.ErrDecode)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing event type", errors.ErrDecode)
	}
	return env, nil
}

// DecodePayload decodes both the envelope and its typed payload for the given stream.
func DecodePayload(kind Kind, raw []byte) (Envelope, Payload, error) {
	env, err := Decode(raw)
	if err != nil {
		return Envelope{}, nil, err
	}
	p, err := env.Payload(kind)
	if err != nil {
		return env, nil, err
	}
	return env, p, nil
}
