package domain

import "github.com/google/uuid"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the append-only ordered list of dialogue messages.
// Entries are never mutated or removed once appended.
type Transcript []Message

// Append adds a message with a fresh unique id and returns it.
func (t *Transcript) Append(role Role, content string) Message {
	msg := Message{ID: uuid.NewString(), Role: role, Content: content}
	*t = append(*t, msg)
	return msg
}

// Last returns the most recent message, if any.
func (t Transcript) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}

// Since returns the messages appended after the first n.
func (t Transcript) Since(n int) Transcript {
	if n >= len(t) {
		return nil
	}
	if n < 0 {
		n = 0
	}
	out := make(Transcript, len(t)-n)
	copy(out, t[n:])
	return out
}
