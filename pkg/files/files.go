// Package files reads Markdown documents to attach and writes documents
// extracted from answers.
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/mdpilot/pkg/prompt"
)

// ErrInvalidName is returned by Save when a file name reduces to nothing
// usable.
var ErrInvalidName = errors.New("invalid file name")

// ErrNotMarkdown is returned when reading a file without a Markdown extension.
var ErrNotMarkdown = errors.New("not a Markdown file")

// MarkdownFile is a document loaded from disk.
type MarkdownFile struct {
	// Name is the base name shown to the model.
	Name string

	// Path is the path the file was read from, as given by the caller.
	Path string

	Content string
}

// Attachment converts f for prompt.Build.
func (f MarkdownFile) Attachment() prompt.Attachment {
	return prompt.Attachment{Name: f.Name, Content: f.Content}
}

// Attachments converts every file.
func Attachments(fs []MarkdownFile) []prompt.Attachment {
	out := make([]prompt.Attachment, len(fs))
	for i, f := range fs {
		out[i] = f.Attachment()
	}
	return out
}

// IsMarkdown reports whether path has a Markdown extension.
func IsMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdx":
		return true
	}
	return false
}

// ReadMarkdownFile loads one document. Paths without a Markdown extension
// are rejected with ErrNotMarkdown.
func ReadMarkdownFile(path string) (MarkdownFile, error) {
	if !IsMarkdown(path) {
		return MarkdownFile{}, fmt.Errorf("%w: %s", ErrNotMarkdown, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return MarkdownFile{}, fmt.Errorf("reading %s: %w", path, err)
	}

	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		name = path
	}

	return MarkdownFile{
		Name:    name,
		Path:    path,
		Content: string(data),
	}, nil
}

// ReadMarkdownFiles loads documents in order, failing on the first error.
func ReadMarkdownFiles(paths []string) ([]MarkdownFile, error) {
	out := make([]MarkdownFile, 0, len(paths))
	for _, p := range paths {
		f, err := ReadMarkdownFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Save writes content to folder/name and returns the written path. The
// folder is created if needed. Only the base name of name is used, so a
// model-supplied name cannot escape folder.
func Save(folder, name, content string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + filepath.ToSlash(name)))
	if base == "" || base == "." || base == "/" || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("creating output folder: %w", err)
	}

	path := filepath.Join(folder, base)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
