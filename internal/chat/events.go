// Package chat coordinates one question-to-answer cycle per inbound
// message and serves it over a persistent WebSocket channel.
package chat

import (
	"time"

	"github.com/shinhan-ai/kb-chatbot/internal/rag"
)

// Inbound and outbound event names on the chat channel.
const (
	EventSend  = "chat:send"
	EventStop  = "chat:stop"
	EventPing  = "chat:ping"
	EventToken = "chat:token"
	EventDone  = "chat:done"
	EventError = "chat:error"
	EventPong  = "chat:pong"
)

// SendRequest is the payload of a chat:send event.
type SendRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	Language       string `json:"language,omitempty"`
}

// TokenEvent carries one generated token fragment.
type TokenEvent struct {
	Token          string `json:"token"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// DoneEvent closes a successful turn, carrying the metadata of every
// retrieved chunk (all of them, whether or not they visibly shaped the
// answer).
type DoneEvent struct {
	ConversationID string              `json:"conversationId"`
	MessageID      string              `json:"messageId"`
	Sources        []rag.ChunkMetadata `json:"sources"`
}

// ErrorEvent closes a failed turn with a human-readable message naming
// the likely failing dependency.
type ErrorEvent struct {
	ConversationID string `json:"conversationId"`
	Error          string `json:"error"`
}

// Emitter pushes outbound events to the client channel.
type Emitter interface {
	Token(TokenEvent)
	Done(DoneEvent)
	Error(ErrorEvent)
}

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a session's history. An assistant message is
// created empty with IsStreaming=true, grows as tokens arrive, and is
// finalized (IsStreaming=false, Sources attached) on completion. Its
// lifecycle is single-writer, scoped to one request/response cycle.
type Message struct {
	ID          string              `json:"id"`
	Role        Role                `json:"role"`
	Content     string              `json:"content"`
	Timestamp   time.Time           `json:"timestamp"`
	Sources     []rag.ChunkMetadata `json:"sources,omitempty"`
	IsStreaming bool                `json:"isStreaming,omitempty"`
}
