// Package fences extracts documents the model wraps in
// "==== name ====" / "==== koniec ====" delimiter lines.
package fences

import (
	"regexp"
	"strings"
)

var (
	openRE   = regexp.MustCompile(`^====\s+(.+?)\s+====$`)
	closeRE  = regexp.MustCompile(`(?i)^====\s+koniec\s+====$`)
	legacyRE = regexp.MustCompile("(?i)```(?:markdown|md)\\s*\\n([\\s\\S]*?)```")
)

// Separator replaces each delimiter line in Unwrap's output.
const Separator = "\n---\n"

// Block is one delimited document.
type Block struct {
	Filename string
	Content  string
}

func opening(line string) (string, bool) {
	if closeRE.MatchString(line) {
		return "", false
	}
	m := openRE.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseBlocks returns every delimited block in text, content trimmed.
// Blocks that are empty after trimming are dropped. A block still open at the
// end of text is kept, so partial answers can be saved too.
func ParseBlocks(text string) []Block {
	var (
		blocks  []Block
		inside  bool
		name    string
		current []string
	)

	add := func() {
		content := strings.TrimSpace(strings.Join(current, "\n"))
		if content != "" {
			blocks = append(blocks, Block{Filename: name, Content: content})
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimRight(line, " \t\r")

		if !inside {
			if n, ok := opening(trimmed); ok {
				inside = true
				name = n
				current = nil
			}
			continue
		}

		if closeRE.MatchString(trimmed) {
			add()
			inside = false
			continue
		}
		current = append(current, line)
	}

	if inside {
		add()
	}
	return blocks
}

// Contents returns just the content of each block.
func Contents(text string) []string {
	blocks := ParseBlocks(text)
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Content
	}
	return out
}

// HasBlocks reports whether text contains an opening delimiter line.
func HasBlocks(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if _, ok := opening(strings.TrimRight(line, " \t\r")); ok {
			return true
		}
	}
	return false
}

// Unwrap prepares an answer for display: delimiter lines become "---"
// separators and the documents are shown inline. Answers without delimiters
// fall back to unwrapping ```markdown fences.
func Unwrap(text string) string {
	if !HasBlocks(text) {
		return legacyRE.ReplaceAllStringFunc(text, func(m string) string {
			inner := legacyRE.FindStringSubmatch(m)[1]
			return Separator + "\n" + strings.TrimSpace(inner) + "\n" + Separator
		})
	}

	var (
		out    []string
		inside bool
	)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimRight(line, " \t\r")

		if !inside {
			if _, ok := opening(trimmed); ok {
				inside = true
				out = append(out, "", "---", "")
				continue
			}
			out = append(out, line)
			continue
		}

		if closeRE.MatchString(trimmed) {
			inside = false
			out = append(out, "", "---", "")
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
