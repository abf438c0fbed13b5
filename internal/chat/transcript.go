// Package chat holds the append-only transcripts shown by the tutor and note assistant.
package chat

import "time"

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

type Message struct {
	Role Role
	Text string
	At   time.Time
}

// Transcript is an ordered, append-only list of messages. It is not safe for concurrent
// use; owners guard it with their own lock.
type Transcript struct {
	messages []Message
}

func (t *Transcript) Append(role Role, text string, at time.Time) Message {
	m := Message{Role: role, Text: text, At: at}
	t.messages = append(t.messages, m)
	return m
}

func (t *Transcript) Len() int {
	return len(t.messages)
}

// Messages returns a copy that later appends do not affect.
func (t *Transcript) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

func (t *Transcript) Reset() {
	t.messages = nil
}
