// Package session keeps the displayed conversation: every user instruction
// and assistant answer, optionally tied to the file it was about.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/mdpilot/pkg/llm"
)

// Message is one entry of the conversation.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// File is the path of the document the message concerns, empty when the
	// message was not tied to a single file.
	File string `json:"file,omitempty"`
}

// LLM converts m to its wire form.
func (m Message) LLM() llm.Message {
	return llm.NewTextMessage(m.Role, m.Content)
}

// Conversation is safe for concurrent use.
type Conversation struct {
	mu       sync.Mutex
	id       uuid.UUID
	messages []Message
	now      func() time.Time
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) {
		c.now = now
	}
}

// New creates an empty conversation with a fresh ID.
func New(opts ...Option) *Conversation {
	c := &Conversation{
		id:  uuid.New(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID identifies the conversation.
func (c *Conversation) ID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// AddUser records an instruction.
func (c *Conversation) AddUser(content, file string) Message {
	return c.add(llm.RoleUser, content, file)
}

// AddAssistant records an answer.
func (c *Conversation) AddAssistant(content, file string) Message {
	return c.add(llm.RoleAssistant, content, file)
}

func (c *Conversation) add(role, content, file string) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Timestamp: c.now(),
		File:      file,
	}
	c.messages = append(c.messages, m)
	return m
}

// Messages returns a snapshot of every message.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

// ForFile returns a snapshot of the messages tied to file.
func (c *Conversation) ForFile(file string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Message
	for _, m := range c.messages {
		if m.File == file {
			out = append(out, m)
		}
	}
	return out
}

// LastAssistant returns the most recent answer.
func (c *Conversation) LastAssistant() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == llm.RoleAssistant {
			return c.messages[i], true
		}
	}
	return Message{}, false
}

// Len is the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Reset clears the messages and starts a new conversation ID.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.id = uuid.New()
}

// History converts messages to their wire form.
func History(messages []Message) []llm.Message {
	out := make([]llm.Message, len(messages))
	for i, m := range messages {
		out[i] = m.LLM()
	}
	return out
}
