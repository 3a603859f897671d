// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders finished assistant messages with glamour. Renderers are
// built once per wrap width, and output is cached by message key and width.
// Not safe for concurrent use; the Bubble Tea loop owns it.
type Markdown struct {
	style     string
	renderers map[int]*glamour.TermRenderer
	cache     map[string]string
}

// NewMarkdown creates a renderer using a glamour standard style name.
func NewMarkdown(style string) *Markdown {
	return &Markdown{
		style:     style,
		renderers: make(map[int]*glamour.TermRenderer),
		cache:     make(map[string]string),
	}
}

// Render returns content rendered at width. An empty key disables caching.
// Rendering failures fall back to the raw content.
func (m *Markdown) Render(key, content string, width int) string {
	if width < 10 {
		width = 10
	}
	cacheKey := ""
	if key != "" {
		cacheKey = key + "@" + strconv.Itoa(width)
		if out, ok := m.cache[cacheKey]; ok {
			return out
		}
	}

	out := content
	if r, err := m.renderer(width); err == nil {
		if rendered, err := r.Render(content); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}

	if cacheKey != "" {
		m.cache[cacheKey] = out
	}
	return out
}

// Forget drops every cached rendering of key.
func (m *Markdown) Forget(key string) {
	prefix := key + "@"
	for k := range m.cache {
		if strings.HasPrefix(k, prefix) {
			delete(m.cache, k)
		}
	}
}

func (m *Markdown) renderer(width int) (*glamour.TermRenderer, error) {
	if r, ok := m.renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	m.renderers[width] = r
	return r, nil
}
