// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/compllama/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrMalformedLine is matched by every per-line parse failure.
var ErrMalformedLine = errors.New("malformed stream line")

// LineError reports one line that is not valid JSON.
type LineError struct {
	Line  string
	Cause error
}

// Error implements the error interface.
func (e *LineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", ErrMalformedLine, e.Cause)
	}
	return ErrMalformedLine.Error()
}

// Unwrap returns the JSON syntax error, if any.
func (e *LineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrMalformedLine.
func (e *LineError) Is(target error) bool {
	return target == ErrMalformedLine
}

// =============================================================================
// RECORD
// =============================================================================

// Record is one parsed line. Fields other than content and sources are not
// interpreted.
type Record struct {
	Content    string
	HasContent bool
	Sources    []model.Source
}

// ParseRecord parses one reassembled line. Invalid JSON yields a *LineError.
// Valid JSON of an unexpected shape yields an empty Record and no error.
func ParseRecord(line string) (Record, error) {
	data := []byte(line)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || !json.Valid(data) {
			return Record{}, &LineError{Line: line, Cause: err}
		}
		// Arrays, numbers, strings: valid but not a record.
		return Record{}, nil
	}

	var rec Record
	if raw, ok := fields["content"]; ok {
		var content string
		if err := json.Unmarshal(raw, &content); err == nil {
			rec.Content = content
			rec.HasContent = true
		}
	}
	if raw, ok := fields["sources"]; ok {
		var sources []model.Source
		if err := json.Unmarshal(raw, &sources); err == nil && len(sources) > 0 {
			rec.Sources = sources
		}
	}
	return rec, nil
}
