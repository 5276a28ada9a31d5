package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shinhan-ai/kb-chatbot/internal/rag"
)

// Session holds one connected client's message history and streaming
// state. Each connection owns exactly one session; sessions are never
// shared across connections.
type Session struct {
	mu        sync.Mutex
	messages  []Message
	streaming bool
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// AddUserMessage appends the user's message to the history.
func (s *Session) AddUserMessage(content string) Message {
	msg := Message{
		ID:        "msg-" + uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return msg
}

// BeginAssistantMessage appends an empty assistant placeholder marked
// streaming and returns its ID.
func (s *Session) BeginAssistantMessage() string {
	msg := Message{
		ID:          "msg-" + uuid.NewString(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.streaming = true
	s.mu.Unlock()
	return msg.ID
}

// AppendToken appends a token fragment to the streaming assistant
// message.
func (s *Session) AppendToken(messageID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg := s.find(messageID); msg != nil && msg.IsStreaming {
		msg.Content += token
	}
}

// Finalize marks the assistant message complete and attaches its
// sources. If replacement is non-empty it overwrites the content (used
// for the apology text on a failed turn). A finalized message never
// stays in a streaming state.
func (s *Session) Finalize(messageID, replacement string, sources []rag.ChunkMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg := s.find(messageID); msg != nil {
		msg.IsStreaming = false
		msg.Sources = sources
		if replacement != "" {
			msg.Content = replacement
		}
	}
	s.streaming = false
}

// Streaming reports whether an assistant message is currently being
// generated.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Messages returns a copy of the session history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) find(messageID string) *Message {
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			return &s.messages[i]
		}
	}
	return nil
}
