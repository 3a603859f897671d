// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/compllama/internal/model"
)

// JSONResponse is the envelope every --json output uses.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w with indentation.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// AskData is the --json output of ask.
type AskData struct {
	Question string      `json:"question"`
	Panels   []PanelData `json:"panels"`
}

// PanelData is one session's reply.
type PanelData struct {
	Name     string         `json:"name"`
	Endpoint string         `json:"endpoint"`
	State    string         `json:"state,omitempty"`
	City     string         `json:"city,omitempty"`
	Reply    string         `json:"reply"`
	Sources  []model.Source `json:"sources,omitempty"`
}

// LocationData is one state of the locations catalog.
type LocationData struct {
	State  string   `json:"state"`
	Cities []string `json:"cities"`
}

// VersionData is the --json output of version.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}
