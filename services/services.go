//go:generate go run go.uber.org/mock/mockgen -source=services.go -destination=../mocks/mock_services.go -package=mocks
package services

import (
	"context"

	"problem-map/auth"
	"problem-map/contract"
	"problem-map/domain/chat"
	"problem-map/domain/event"
	"problem-map/domain/problem"
)

type IAuthService interface {
	Login(email, password string) (auth.Session, error)
	Register(email, password string) (auth.Session, error)
}

type IUserService interface {
	List() ([]auth.Account, error)
	Create(req auth.CreateUserRequest) (auth.Account, error)
}

type IProblemService interface {
	List() []problem.Problem
	Get(id string) (problem.Problem, error)
	Search(ctx context.Context, text string, limit int) ([]problem.Problem, error)
	Create(ctx context.Context, userID string, req auth.CreateProblemRequest) (problem.Problem, error)
	Update(ctx context.Context, req auth.UpdateProblemRequest) (string, error)
}

type IChatService interface {
	GetMessages(chatID string) []chat.Message
	PostMessage(ctx context.Context, userID string, req auth.PostMessageRequest) (chat.Message, error)
	UpdateMessage(ctx context.Context, req auth.UpdateMessageRequest) (string, error)
	JoinRoom(participantID string, room event.Room, sink contract.EventSink) event.Notification
	LeaveRoom(participantID string, room event.Room)
	Disconnect(participantID string)
}
