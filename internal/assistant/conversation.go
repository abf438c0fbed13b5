// Package assistant is the "ask your notes" chat: one transcript, answered by the backend's
// retrieval endpoint.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"brainsync-client/internal/chat"
	"brainsync-client/internal/pkg/logger"
)

const (
	Greeting     = "Hi there! 👋 I've read all your notes. Ask me anything to find connections or summaries!"
	NoAnswerText = "I couldn't find anything relevant in your notes."
	ErrorText    = "⚠️ Oops! My brain creates a connection error. Try again!"
)

// ErrConversationReset is returned by an Ask whose conversation was reset while the
// backend call was in flight. Its reply is dropped.
var ErrConversationReset = errors.New("conversation was reset")

type Answerer interface {
	ChatWithNotes(ctx context.Context, question string) (string, error)
}

type Conversation struct {
	answerer Answerer
	logger   logger.ILogger
	now      func() time.Time

	// askMu orders concurrent questions; mu guards the transcript.
	askMu      sync.Mutex
	mu         sync.Mutex
	transcript chat.Transcript
	generation uint64
	cancel     context.CancelFunc
}

func NewConversation(answerer Answerer, log logger.ILogger) *Conversation {
	c := &Conversation{answerer: answerer, logger: log, now: time.Now}
	c.transcript.Append(chat.RoleAI, Greeting, c.now())
	return c
}

// Ask appends the question and the reply. Blank questions are ignored and return ok=false,
// as are replies that arrive after a Reset (with ErrConversationReset).
// A failed call still yields a reply (ErrorText) together with the error.
func (c *Conversation) Ask(ctx context.Context, question string) (reply chat.Message, ok bool, err error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return chat.Message{}, false, nil
	}

	c.askMu.Lock()
	defer c.askMu.Unlock()

	c.mu.Lock()
	c.transcript.Append(chat.RoleUser, question, c.now())
	generation := c.generation
	callCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	answer, err := c.answerer.ChatWithNotes(callCtx, question)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		if err != nil {
			return chat.Message{}, false, fmt.Errorf("%w: %w", ErrConversationReset, err)
		}
		return chat.Message{}, false, ErrConversationReset
	}
	c.cancel = nil
	if err != nil {
		c.logger.Warn("Assistant", "Chat with notes failed", map[string]interface{}{"error": err.Error()})
		return c.transcript.Append(chat.RoleAI, ErrorText, c.now()), true, err
	}
	if strings.TrimSpace(answer) == "" {
		answer = NoAnswerText
	}
	return c.transcript.Append(chat.RoleAI, answer, c.now()), true, nil
}

func (c *Conversation) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Messages()
}

// Reset starts over with only the greeting. An Ask in flight is cancelled and its
// reply discarded.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.transcript.Reset()
	c.transcript.Append(chat.RoleAI, Greeting, c.now())
}
