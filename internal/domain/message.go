package domain

import (
	"strings"
	"time"
)

type MessageID string

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

type Thread struct {
	ID        ThreadID
	CreatedAt time.Time
}

type Message struct {
	ID        MessageID
	ThreadID  ThreadID
	Role      MessageRole
	Texts     []string
	CreatedAt time.Time
}

// Text joins the message's text fragments in reported order.
func (m Message) Text() string {
	return strings.Join(m.Texts, "\n")
}
