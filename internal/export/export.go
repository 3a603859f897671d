// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/compllama/internal/model"
	"github.com/jeranaias/compllama/internal/session"
	"github.com/jeranaias/compllama/internal/util"
)

// ErrEmpty is returned when no panel has any message.
var ErrEmpty = errors.New("conversation has no messages")

// =============================================================================
// CONVERSATION
// =============================================================================

// Panel is one session's transcript.
type Panel struct {
	Name     string          `json:"name"`
	Endpoint string          `json:"endpoint"`
	Location string          `json:"location,omitempty"`
	Messages []model.Message `json:"messages"`
}

// Conversation is the exported document.
type Conversation struct {
	Title      string    `json:"title"`
	ExportedAt time.Time `json:"exported_at"`
	Panels     []Panel   `json:"panels"`
}

// Empty reports whether no panel has a message.
func (c Conversation) Empty() bool {
	for _, p := range c.Panels {
		if len(p.Messages) > 0 {
			return false
		}
	}
	return true
}

// FromSessions snapshots each session's transcript. Streaming placeholders
// are included with whatever content has arrived.
func FromSessions(title string, sessions []*session.Session) Conversation {
	conv := Conversation{Title: title, ExportedAt: time.Now()}
	for _, s := range sessions {
		conv.Panels = append(conv.Panels, Panel{
			Name:     s.Name(),
			Endpoint: s.Endpoint(),
			Location: s.Location().String(),
			Messages: s.Transcript().Snapshot().Messages,
		})
	}
	return conv
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format.
	Export(conv Conversation) ([]byte, error)

	// FileExtension returns the file extension, including the dot.
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds a front matter block and per-panel endpoints.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message timestamps.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// ForPath picks an exporter from the file extension: .json for JSON,
// .md or .markdown for Markdown.
func ForPath(path string, opts *Options) (Exporter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewJSONExporter(opts), nil
	case ".md", ".markdown":
		return NewMarkdownExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (use .md or .json)", filepath.Ext(path))
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile writes conv to path in the format its extension names.
func ToFile(conv Conversation, path string, opts *Options) error {
	exporter, err := ForPath(path, opts)
	if err != nil {
		return err
	}
	return write(conv, exporter, path)
}

// ToDir writes conv into dir under a generated name and returns the path.
func ToDir(conv Conversation, exporter Exporter, dir string) (string, error) {
	stamp := conv.ExportedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	filename := fmt.Sprintf("compllama_%s_%s%s",
		sanitizeFilename(conv.Title),
		stamp.Format("20060102_150405"),
		exporter.FileExtension(),
	)
	path := filepath.Join(dir, filename)
	if err := write(conv, exporter, path); err != nil {
		return "", err
	}
	return path, nil
}

func write(conv Conversation, exporter Exporter, path string) error {
	if conv.Empty() {
		return ErrEmpty
	}
	content, err := exporter.Export(conv)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := util.AtomicWriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	var b strings.Builder
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "conversation"
	}
	return b.String()
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
