// Package export renders prompts to downloadable files and share links.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Formats.
const (
	FormatText = "txt"
	FormatJSON = "json"
)

// ShareContentLimit bounds the content carried in a share link.
const ShareContentLimit = 1500

// DefaultSharedTitle is used when a share link carries no title.
const DefaultSharedTitle = "Shared Prompt"

// ErrNoSharedContent is returned when a share link has no content.
var ErrNoSharedContent = errors.New("No prompt content found in the shared link.")

// ErrUnknownFormat is returned by Render for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

var filenameUnsafe = regexp.MustCompile(`[^\w\s]`)

// Filename derives a download filename from title. Characters other than
// letters, digits, underscores and whitespace are removed.
func Filename(title, ext string) string {
	base := strings.TrimSpace(filenameUnsafe.ReplaceAllString(title, ""))
	if base == "" {
		base = "prompt"
	}
	return base + "." + ext
}

// Text is the plain-text export: the prompt content with markup removed.
func Text(content string) []byte {
	return []byte(StripHTML(content))
}

// Document is the JSON export shape.
type Document struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	ExportedAt string `json:"exportedAt"`
}

// JSON renders the JSON export, indented by two spaces.
func JSON(id, title, content string, now time.Time) ([]byte, error) {
	doc := Document{
		ID:         id,
		Title:      title,
		Content:    StripHTML(content),
		ExportedAt: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Render produces the export bytes and filename for format.
func Render(format, id, title, content string, now time.Time) ([]byte, string, error) {
	switch format {
	case FormatText, "", "text":
		return Text(content), Filename(title, FormatText), nil
	case FormatJSON:
		data, err := JSON(id, title, content, now)
		if err != nil {
			return nil, "", err
		}
		return data, Filename(title, FormatJSON), nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ShareURL builds a link that carries the prompt in its query string. Content
// is stripped of markup and truncated to ShareContentLimit runes.
func ShareURL(baseURL, title, content string) string {
	plain := []rune(StripHTML(content))
	if len(plain) > ShareContentLimit {
		plain = plain[:ShareContentLimit]
	}
	return strings.TrimRight(baseURL, "/") + "/shared?title=" + encodeComponent(title) +
		"&content=" + encodeComponent(string(plain))
}

// encodeComponent escapes s for a query value with spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Shared is a prompt decoded from a share link.
type Shared struct {
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// ParseShared decodes a share link. A bare query string is accepted too.
func ParseShared(raw string) (Shared, error) {
	raw = strings.TrimSpace(raw)
	query := raw
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		query = raw[i+1:]
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return Shared{}, fmt.Errorf("parse shared link: %w", err)
	}
	return SharedFromValues(values)
}

// SharedFromValues reads title and content query parameters.
func SharedFromValues(values url.Values) (Shared, error) {
	s := Shared{
		Title:   strings.TrimSpace(values.Get("title")),
		Content: values.Get("content"),
	}
	if s.Title == "" {
		s.Title = DefaultSharedTitle
	}
	if strings.TrimSpace(s.Content) == "" {
		return Shared{}, ErrNoSharedContent
	}
	return s, nil
}

// Save writes data to dir/filename on fs and returns the path written.
func Save(fs afero.Fs, dir, filename string, data []byte) (string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := afero.WriteFile(fs, path, data, os.FileMode(0o644)); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
