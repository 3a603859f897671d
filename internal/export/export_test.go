// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/compllama/internal/model"
)

var exportedAt = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func sampleConversation(panels int) Conversation {
	conv := Conversation{Title: "Setbacks: duplex?", ExportedAt: exportedAt}
	names := []string{"left", "right"}
	for i := 0; i < panels; i++ {
		conv.Panels = append(conv.Panels, Panel{
			Name:     names[i],
			Endpoint: "http://localhost:8000/chat",
			Location: "Texas / Austin",
			Messages: []model.Message{
				{Role: model.RoleUser, Content: "Front setback for a duplex?", Timestamp: exportedAt},
				{
					Role:      model.RoleAssistant,
					Content:   "Use **25 ft** from the property line.",
					Timestamp: exportedAt,
					Sources:   []model.Source{{Label: "Austin LDC 25-2-492", URL: "https://library.municode.com/tx/austin"}},
				},
			},
		})
	}
	return conv
}

func TestMarkdownExporter_SinglePanel(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleConversation(1))
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: \"Setbacks: duplex?\"\n"))
	assert.Contains(t, md, "# Setbacks: duplex?")
	assert.Contains(t, md, "## You <sub>15:09:26</sub>")
	assert.Contains(t, md, "## Assistant")
	assert.Contains(t, md, "Use **25 ft** from the property line.")
	assert.Contains(t, md, "- [Austin LDC 25-2-492](https://library.municode.com/tx/austin)")
	assert.Contains(t, md, "- **Location**: Texas / Austin")
	assert.NotContains(t, md, "## left")
}

func TestMarkdownExporter_ComparePanels(t *testing.T) {
	out, err := NewMarkdownExporter(&Options{}).Export(sampleConversation(2))
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "## left")
	assert.Contains(t, md, "## right")
	assert.Contains(t, md, "### Assistant\n")
	assert.NotContains(t, md, "generator:")
	assert.NotContains(t, md, "**Endpoint**")
}

func TestMarkdownExporter_EmptyReply(t *testing.T) {
	conv := sampleConversation(1)
	conv.Panels[0].Messages[1].Content = ""
	out, err := NewMarkdownExporter(nil).Export(conv)
	require.NoError(t, err)
	assert.Contains(t, string(out), "*(no reply)*")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleConversation(2))
	require.NoError(t, err)

	var back Conversation
	require.NoError(t, json.Unmarshal(out, &back))
	require.Len(t, back.Panels, 2)
	assert.Equal(t, "right", back.Panels[1].Name)
	assert.Equal(t, "Use **25 ft** from the property line.", back.Panels[1].Messages[1].Content)
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path    string
		wantExt string
		wantErr bool
	}{
		{"out.md", ".md", false},
		{"OUT.Markdown", ".md", false},
		{"out.json", ".json", false},
		{"out.html", "", true},
		{"out", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			e, err := ForPath(tc.path, nil)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantExt, e.FileExtension())
		})
	}
}

func TestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reply.json")
	require.NoError(t, ToFile(sampleConversation(1), path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "Setbacks: duplex?"`)
}

func TestToFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.md")
	err := ToFile(Conversation{Panels: []Panel{{Name: "left"}}}, path, nil)
	assert.ErrorIs(t, err, ErrEmpty)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestToDir(t *testing.T) {
	dir := t.TempDir()
	path, err := ToDir(sampleConversation(1), NewMarkdownExporter(nil), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "compllama_Setbacks-_duplex-_20250314_150926.md"), path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "conversation", sanitizeFilename(""))
	assert.Equal(t, "a-b-c_d", sanitizeFilename("a/b:c d"))
	assert.Equal(t, 50, len([]rune(sanitizeFilename(strings.Repeat("x", 80)))))
}
