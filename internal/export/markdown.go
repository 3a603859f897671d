// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/compllama/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown. Message content is
// already Markdown and is written as-is.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown. Each panel becomes a section
// when there is more than one.
func (e *MarkdownExporter) Export(conv Conversation) ([]byte, error) {
	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(conv.Title))
		fmt.Fprintf(&sb, "exported: %s\n", conv.ExportedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "panels: %d\n", len(conv.Panels))
		sb.WriteString("generator: compllama\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.Title))

	multi := len(conv.Panels) > 1
	for _, p := range conv.Panels {
		if multi {
			fmt.Fprintf(&sb, "## %s\n\n", escapeMarkdown(p.Name))
		}
		if e.options.IncludeMetadata {
			fmt.Fprintf(&sb, "- **Endpoint**: %s\n", p.Endpoint)
			if p.Location != "" {
				fmt.Fprintf(&sb, "- **Location**: %s\n", p.Location)
			}
			fmt.Fprintf(&sb, "- **Messages**: %d\n\n", len(p.Messages))
		}
		e.writeMessages(&sb, p.Messages, multi)
	}

	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "*Exported from CompLlama on %s*\n", formatTimestamp(conv.ExportedAt))

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) writeMessages(sb *strings.Builder, msgs []model.Message, nested bool) {
	heading := "###"
	if !nested {
		heading = "##"
	}
	for _, msg := range msgs {
		label := msg.Role.DisplayName()
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			fmt.Fprintf(sb, "%s %s <sub>%s</sub>\n\n", heading, label, formatShortTimestamp(msg.Timestamp))
		} else {
			fmt.Fprintf(sb, "%s %s\n\n", heading, label)
		}

		content := strings.TrimSpace(msg.Content)
		if content == "" {
			content = "*(no reply)*"
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")

		for _, src := range msg.Sources {
			fmt.Fprintf(sb, "- [%s](%s)\n", escapeMarkdown(src.Label), src.URL)
		}
		if len(msg.Sources) > 0 {
			sb.WriteString("\n")
		}
	}
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that break headings and link labels.
func escapeMarkdown(s string) string {
	return strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
	).Replace(s)
}

// escapeYAML quotes values containing YAML special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
