package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zhouzirui/paper-verify/internal/model/chat"
)

// DefaultSessionID 用于请求未携带 session_id 的情况。
const DefaultSessionID = "default"

var ErrEmptyMessage = errors.New("message content is required")

// Service keeps per-session transcripts in memory.
type Service struct {
	mu       sync.RWMutex
	messages map[string][]chat.Message
}

// NewService bootstraps the in-memory transcript store.
func NewService() *Service {
	return &Service{
		messages: make(map[string][]chat.Message),
	}
}

// SaveMessage appends a message to the session history, creating the session
// on first use. An empty session id maps to DefaultSessionID.
func (s *Service) SaveMessage(_ context.Context, sessionID string, message chat.Message) error {
	if message.Content == "" {
		return ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.messages[sessionID] = append(s.messages[sessionID], message)
	s.mu.Unlock()
	return nil
}

// LoadTranscript returns a copy of the stored messages. Unknown sessions have
// an empty transcript.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) []chat.Message {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.messages[sessionID]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied
}

// Reset clears the transcript of a session.
func (s *Service) Reset(_ context.Context, sessionID string) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	s.mu.Lock()
	s.messages[sessionID] = nil
	s.mu.Unlock()
}
