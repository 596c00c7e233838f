// Package llm holds the chat-completion wire types shared by the client,
// the stream driver and the HTTP server.
package llm

// Message roles understood by chat-completion endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
// A Message is a value: once built it is never mutated, and its only identity
// is its position in the request's message list.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // Plain text content
}

// NewTextMessage creates a message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}

// TotalChars returns the combined content length of messages. It is used for
// rough prompt-size diagnostics.
func TotalChars(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return total
}
