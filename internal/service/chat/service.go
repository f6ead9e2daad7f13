// Package chat keeps a bounded transcript of each assistant session for support and
// debugging.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-pharmacy/backend/internal/model/chat"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// DefaultHistoryLimit caps the messages kept per session.
const DefaultHistoryLimit = 200

// Service encapsulates transcript storage.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
	limit    int
	now      func() time.Time
}

// NewService bootstraps the in-memory transcript store. A limit below one uses the default.
func NewService(limit int) *Service {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	return &Service{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
		limit:    limit,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SaveMessage appends a message to the session history, creating the session on first use.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) error {
	if message.SessionID == "" {
		return ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	session, ok := s.sessions[message.SessionID]
	if !ok {
		session = chat.Session{ID: message.SessionID, CreatedAt: now}
	}
	session.LastActive = now
	if message.Sender == chat.SenderUser {
		session.Turns++
	}
	s.sessions[message.SessionID] = session

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}

	history := append(s.messages[message.SessionID], message)
	if over := len(history) - s.limit; over > 0 {
		history = append(history[:0:0], history[over:]...)
	}
	s.messages[message.SessionID] = history
	return nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Forget drops a session's transcript.
func (s *Service) Forget(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
}

// RecordTurn saves a user message and the assistant's reply to it.
func (s *Service) RecordTurn(ctx context.Context, sessionID, userText, replyText, intent, branch string) error {
	if err := s.SaveMessage(ctx, chat.Message{SessionID: sessionID, Sender: chat.SenderUser, Content: userText}); err != nil {
		return err
	}
	return s.SaveMessage(ctx, chat.Message{
		SessionID: sessionID,
		Sender:    chat.SenderAssistant,
		Content:   replyText,
		Intent:    intent,
		Branch:    branch,
	})
}
