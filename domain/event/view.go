package event

import (
	"time"

	"problem-map/domain/chat"
	"problem-map/domain/problem"

	"github.com/samber/lo"
)

// ProblemView is the wire representation pushed to clients: text timestamps, enum value.
type ProblemView struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Longitude   float64 `json:"long"`
	Latitude    float64 `json:"lat"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type MessageView struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	Author    string `json:"author"`
	Rating    int    `json:"rating"`
	Body      string `json:"message"`
	CreatedAt string `json:"created_at"`
	Hidden    bool   `json:"hidden"`
}

func ToProblemView(p problem.Problem) ProblemView {
	return ProblemView{
		ID:          p.ID,
		UserID:      p.UserID,
		Title:       p.Title,
		Description: p.Description,
		Longitude:   p.Longitude,
		Latitude:    p.Latitude,
		Status:      string(p.Status),
		CreatedAt:   isoTime(p.CreatedAt),
		UpdatedAt:   isoTime(p.UpdatedAt),
	}
}

func ToProblemViews(problems []problem.Problem) []ProblemView {
	return lo.Map(problems, func(p problem.Problem, _ int) ProblemView { return ToProblemView(p) })
}

func ToMessageView(m chat.Message) MessageView {
	return MessageView{
		ChatID:    m.ChatID,
		MessageID: m.MessageID,
		Author:    m.Author,
		Rating:    m.Rating,
		Body:      m.Body,
		CreatedAt: isoTime(m.CreatedAt),
		Hidden:    m.Hidden,
	}
}

func ToMessageViews(messages []chat.Message) []MessageView {
	return lo.Map(messages, func(m chat.Message, _ int) MessageView { return ToMessageView(m) })
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
