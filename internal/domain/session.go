package domain

import (
	"sync"
	"time"
)

// ChatType selects which conversation a message belongs to.
type ChatType int

const (
	// ChatDocument answers questions grounded on the indexed document.
	ChatDocument ChatType = iota
	// ChatSimple talks to the language model without retrieval.
	ChatSimple
)

func (c ChatType) String() string {
	if c == ChatSimple {
		return "simple"
	}
	return "document"
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
	At      time.Time
}

// Session keeps the per-chat-type message history of one user session.
type Session struct {
	mu       sync.RWMutex
	document []Message
	simple   []Message
}

// NewSession returns an empty session.
func NewSession() *Session { return &Session{} }

// Messages returns a copy of the history for the chat type.
func (s *Session) Messages(ct ChatType) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := *s.slot(ct)
	out := make([]Message, len(src))
	copy(out, src)
	return out
}

// Append records a message for the chat type.
func (s *Session) Append(ct ChatType, role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.slot(ct)
	*slot = append(*slot, Message{Role: role, Content: content, At: time.Now()})
}

// Reset clears the history of the chat type.
func (s *Session) Reset(ct ChatType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.slot(ct) = nil
}

func (s *Session) slot(ct ChatType) *[]Message {
	if ct == ChatSimple {
		return &s.simple
	}
	return &s.document
}
