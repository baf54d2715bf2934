// Package problem holds the reported problem aggregate and its partial update rules.
package problem

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	Pending  Status = "pending"
	Open     Status = "open"
	Closed   Status = "closed"
	Rejected Status = "rejected"
)

var statuses = map[Status]struct{}{Pending: {}, Open: {}, Closed: {}, Rejected: {}}

func (s Status) Valid() bool {
	_, ok := statuses[s]
	return ok
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Problem is a reported issue pinned on the map.
// ID and CreatedAt never change once the problem exists.
type Problem struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Longitude   float64
	Latitude    float64
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New builds a pending problem with a fresh identity.
func New(userID, title, description string, longitude, latitude float64, now time.Time) Problem {
	now = now.UTC()
	return Problem{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Longitude:   longitude,
		Latitude:    latitude,
		Status:      Pending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Patch carries a sparse update. A nil field is left untouched.
type Patch struct {
	ID          string
	Title       *string
	Description *string
	Longitude   *float64
	Latitude    *float64
	Status      *Status
}

// Empty reports whether the patch changes nothing besides addressing its target.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Longitude == nil &&
		p.Latitude == nil && p.Status == nil
}

// Merge applies patch on current. Identity, owner and creation time are never taken from
// the patch. UpdatedAt always moves strictly forward, even when the clock does not.
func Merge(current Problem, patch Patch, now time.Time) Problem {
	updated := current
	if patch.Title != nil {
		updated.Title = *patch.Title
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.Longitude != nil {
		updated.Longitude = *patch.Longitude
	}
	if patch.Latitude != nil {
		updated.Latitude = *patch.Latitude
	}
	if patch.Status != nil {
		updated.Status = *patch.Status
	}
	now = now.UTC()
	if !now.After(current.UpdatedAt) {
		now = current.UpdatedAt.Add(time.Microsecond)
	}
	updated.UpdatedAt = now
	return updated
}
