package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"problem-map/auth"
	"problem-map/contract"
	"problem-map/domain/chat"
	"problem-map/domain/event"
	"problem-map/errors"
	"problem-map/moderation"
)

// Rooms is the real-time side of the orchestrator.
type Rooms interface {
	JoinRoom(participantID string, room event.Room, sink contract.EventSink) event.Notification
	LeaveRoom(participantID string, room event.Room)
	Disconnect(participantID string)
}

type ChatService struct {
	log            *slog.Logger
	chats          contract.IChatStore
	problems       contract.IProblemStore
	publisher      contract.IPublisher
	moderator      *moderation.Moderator
	rooms          Rooms
	publishTimeout time.Duration
	now            func() time.Time
}

func NewChatService(
	log *slog.Logger,
	chats contract.IChatStore,
	problems contract.IProblemStore,
	publisher contract.IPublisher,
	moderator *moderation.Moderator,
	rooms Rooms,
	publishTimeout time.Duration,
) *ChatService {
	return &ChatService{
		log:            log,
		chats:          chats,
		problems:       problems,
		publisher:      publisher,
		moderator:      moderator,
		rooms:          rooms,
		publishTimeout: publishTimeout,
		now:            time.Now,
	}
}

func (s *ChatService) GetMessages(chatID string) []chat.Message {
	return s.chats.Get(chatID)
}

// PostMessage censors the body and publishes the message. The chat must be
// the id of a known problem.
func (s *ChatService) PostMessage(ctx context.Context, userID string, req auth.PostMessageRequest) (chat.Message, error) {
	if err := auth.Validate(req); err != nil {
		return chat.Message{}, err
	}
	if _, err := s.problems.Get(req.ChatID); err != nil {
		return chat.Message{}, err
	}

	verdict := s.moderator.Moderate(req.Message)
	if len(verdict.CensoredWords) > 0 {
		s.log.Info("Message censored before publication",
			"chat_id", req.ChatID, "author", userID, "words", len(verdict.CensoredWords))
	}
	cmd := chat.PostMessageCommand{ChatID: req.ChatID, UserID: userID, Body: verdict.Body, CreatedAt: s.now()}
	m := chat.New(cmd.ChatID, cmd.UserID, cmd.Body, cmd.CreatedAt)

	handle, err := s.publisher.PublishInsert(ctx, event.MessageInserted{Message: m})
	if err != nil {
		return chat.Message{}, err
	}
	if err := awaitPublish(ctx, handle, s.publishTimeout); err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

// UpdateMessage publishes the changed fields of a known message and returns the event id.
func (s *ChatService) UpdateMessage(ctx context.Context, req auth.UpdateMessageRequest) (string, error) {
	if err := auth.Validate(req); err != nil {
		return "", err
	}
	if !s.messageExists(req.ChatID, req.MessageID) {
		return "", fmt.Errorf("message %s in chat %s: %w", req.MessageID, req.ChatID, errors.ErrNotFound)
	}

	cmd := chat.UpdateMessageCommand{
		ChatID:    req.ChatID,
		MessageID: req.MessageID,
		Body:      req.Message,
		Rating:    req.Rating,
		Hidden:    req.Hidden,
	}
	if cmd.Body != nil {
		censored := s.moderator.Moderate(*cmd.Body).Body
		cmd.Body = &censored
	}
	patch := cmd.ToPatch()
	if patch.Empty() {
		return "", fmt.Errorf("%w: nothing to update", errors.ErrValidation)
	}

	handle, err := s.publisher.PublishUpdate(ctx, event.MessageUpdated{Patch: patch})
	if err != nil {
		return "", err
	}
	if err := awaitPublish(ctx, handle, s.publishTimeout); err != nil {
		return "", err
	}
	return handle.EventID(), nil
}

func (s *ChatService) JoinRoom(participantID string, room event.Room, sink contract.EventSink) event.Notification {
	return s.rooms.JoinRoom(participantID, room, sink)
}

func (s *ChatService) LeaveRoom(participantID string, room event.Room) {
	s.rooms.LeaveRoom(participantID, room)
}

func (s *ChatService) Disconnect(participantID string) {
	s.rooms.Disconnect(participantID)
}

func (s *ChatService) messageExists(chatID, messageID string) bool {
	for _, m := range s.chats.Get(chatID) {
		if m.MessageID == messageID {
			return true
		}
	}
	return false
}
