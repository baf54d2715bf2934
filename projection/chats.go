package projection

import (
	"fmt"
	"log/slog"
	"sync"

	"problem-map/contract"
	"problem-map/domain/chat"
	"problem-map/domain/event"
	"problem-map/errors"
)

var _ contract.IChatStore = (*ChatStore)(nil)

// ChatStore maps a chat id to its messages in posting order. All chats share one lock.
type ChatStore struct {
	mu       sync.Mutex
	log      *slog.Logger
	notifier contract.INotifier
	chats    map[string][]chat.Message
	revision uint64
}

func NewChatStore(log *slog.Logger, notifier contract.INotifier) *ChatStore {
	return &ChatStore{
		log:      log,
		notifier: notifier,
		chats:    make(map[string][]chat.Message),
	}
}

// Get never fails: a chat nobody wrote in yet is simply empty.
func (s *ChatStore) Get(chatID string) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(chatID)
}

func (s *ChatStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

// Add appends m to its chat. A redelivered insert for a known message never
// touches the stored message, so updates applied since then survive.
func (s *ChatStore) Add(m chat.Message) []chat.Message {
	s.mu.Lock()
	messages := s.chats[m.ChatID]
	if i := position(messages, m.MessageID); i >= 0 {
		current := messages[i]
		snapshot := s.snapshot(m.ChatID)
		s.mu.Unlock()
		if chat.Equal(current, m) {
			s.log.Debug("Duplicate message insert ignored", "chat_id", m.ChatID, "message_id", m.MessageID)
		} else {
			s.log.Warn("Message insert redelivered with different data, keeping the known state",
				"chat_id", m.ChatID, "message_id", m.MessageID)
		}
		return snapshot
	}
	s.chats[m.ChatID] = append(messages, m)
	s.revision++
	snapshot, revision := s.snapshot(m.ChatID), s.revision
	s.mu.Unlock()

	s.notifier.Notify(event.ChatChanged(m.ChatID, snapshot, revision))
	return snapshot
}

func (s *ChatStore) Update(patch chat.Patch) ([]chat.Message, error) {
	s.mu.Lock()
	messages, ok := s.chats[patch.ChatID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("chat %s: %w", patch.ChatID, errors.ErrNotFound)
	}
	i := position(messages, patch.MessageID)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("message %s in chat %s: %w", patch.MessageID, patch.ChatID, errors.ErrNotFound)
	}
	messages[i] = chat.Merge(messages[i], patch)
	s.revision++
	snapshot, revision := s.snapshot(patch.ChatID), s.revision
	s.mu.Unlock()

	s.notifier.Notify(event.ChatChanged(patch.ChatID, snapshot, revision))
	return snapshot, nil
}

// Snapshot returns the messages of a chat together with the store revision they reflect.
func (s *ChatStore) Snapshot(chatID string) ([]chat.Message, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(chatID), s.revision
}

// snapshot must be called with the lock held.
func (s *ChatStore) snapshot(chatID string) []chat.Message {
	messages := s.chats[chatID]
	out := make([]chat.Message, len(messages))
	copy(out, messages)
	return out
}

func position(messages []chat.Message, messageID string) int {
	for i, m := range messages {
		if m.MessageID == messageID {
			return i
		}
	}
	return -1
}
