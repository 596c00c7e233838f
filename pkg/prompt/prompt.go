// Package prompt assembles the message list sent for each request.
package prompt

import (
	"strings"

	"github.com/papercomputeco/mdpilot/pkg/llm"
)

// SystemPrompt instructs the model how to analyze documents and how to
// delimit complete documents in its answer (see pkg/fences).
const SystemPrompt = `You are an expert Markdown document analyzer and editor. You help users analyze, improve, and fix Markdown documents.

When analyzing documents:
- Point out formatting issues, broken links, inconsistencies
- Suggest improvements for readability and structure
- Fix grammatical and spelling errors when asked

When generating improved documents:
- Preserve the original structure unless asked to change it
- Use proper Markdown formatting
- Maintain consistency in headings, lists, and code blocks

Always respond in the same language as the user's instruction.

When outputting a complete or improved document, wrap it with special delimiters:
- Start with a line: ==== filename.extension ====
- Then the full document content (may include code blocks, any markdown)
- End with a line: ==== koniec ====

Example:
==== readme.md ====
# My Document
Some content with a code block:
` + "```js\nconsole.log(\"hello\");\n```" + `
==== koniec ====

Never use ` + "```markdown" + ` fences to wrap entire output documents. Use the ==== delimiters instead.`

// Attachment is a document appended to the user's instruction.
type Attachment struct {
	Name    string
	Content string
}

// Build returns the system prompt, then the history (when given), then the
// user's command with any attachments.
//
// Only complete user→assistant pairs of history are kept so that roles
// strictly alternate; a dangling user turn or an orphaned assistant turn is
// dropped.
func Build(command string, attachments []Attachment, history []llm.Message) []llm.Message {
	messages := []llm.Message{llm.NewTextMessage(llm.RoleSystem, SystemPrompt)}
	messages = append(messages, Pairs(history)...)
	messages = append(messages, llm.NewTextMessage(llm.RoleUser, UserContent(command, attachments)))
	return messages
}

// Pairs filters history down to adjacent user→assistant pairs.
func Pairs(history []llm.Message) []llm.Message {
	var out []llm.Message
	for i := 0; i < len(history)-1; i++ {
		if history[i].Role == llm.RoleUser && history[i+1].Role == llm.RoleAssistant {
			out = append(out, history[i], history[i+1])
			i++
		}
	}
	return out
}

// UserContent renders command followed by an attachment section.
func UserContent(command string, attachments []Attachment) string {
	if len(attachments) == 0 {
		return command
	}

	var b strings.Builder
	b.WriteString(command)
	b.WriteString("\n\n## Attached Markdown Files:")
	for _, a := range attachments {
		b.WriteString("\n---\n### File: ")
		b.WriteString(a.Name)
		b.WriteString("\n```markdown\n")
		b.WriteString(a.Content)
		b.WriteString("\n```\n")
	}
	return b.String()
}
