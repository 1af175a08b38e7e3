package models

import "time"

// Role is the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatTurn is one message in the conversation.
type ChatTurn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Message returns the wire projection of t, without id and timestamp.
func (t ChatTurn) Message() Message {
	return Message{Role: t.Role, Content: t.Content}
}

// Message is a {role, content} pair sent to the generation endpoint.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Messages projects turns to their wire form, preserving order.
func Messages(turns []ChatTurn) []Message {
	out := make([]Message, len(turns))
	for i, t := range turns {
		out[i] = t.Message()
	}
	return out
}

// Reference is a retrieved excerpt returned alongside an assistant answer.
type Reference struct {
	Content string `json:"content"`
	Label   string `json:"reference"`
}
