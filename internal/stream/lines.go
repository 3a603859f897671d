// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "strings"

// =============================================================================
// LINE REASSEMBLER
// =============================================================================

// Reassembler splits decoded text into complete lines. The trailing partial
// line is kept until a later Feed completes it. Each stream owns its own
// Reassembler.
type Reassembler struct {
	// PERFORMANCE: strings.Builder avoids quadratic concatenation when one
	// line arrives over many chunks
	carry strings.Builder
}

// NewReassembler creates an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends text and returns every line it completes, trimmed, with blank
// lines removed.
func (r *Reassembler) Feed(text string) []string {
	var lines []string
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			r.carry.WriteString(text)
			return lines
		}

		var line string
		if r.carry.Len() > 0 {
			r.carry.WriteString(text[:i])
			line = r.carry.String()
			r.carry.Reset()
		} else {
			line = text[:i]
		}
		text = text[i+1:]

		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
}

// Flush returns the remaining carry as a final line, if it is not blank.
// The service may omit the newline after its last record.
func (r *Reassembler) Flush() []string {
	line := strings.TrimSpace(r.carry.String())
	r.carry.Reset()
	if line == "" {
		return nil
	}
	return []string{line}
}

// Pending returns the length of the partial line held back.
func (r *Reassembler) Pending() int {
	return r.carry.Len()
}
