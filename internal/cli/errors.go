// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/compllama/internal/completion"
	"github.com/jeranaias/compllama/internal/config"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the endpoint could not be reached or failed
	ExitNetworkError = 5
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitInterrupted indicates the command was cancelled
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "ask")
	Action  string // Action being performed (e.g., "load config")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Flag or argument that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// StreamError reports a panel that produced no reply.
type StreamError struct {
	Panel    string
	Endpoint string
	Reason   string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Panel, e.Reason, e.Endpoint)
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	var configErrs config.ValidateErrors
	var cmdErr *CommandError
	if errors.As(err, &configErrs) || (errors.As(err, &cmdErr) && cmdErr.Command == "config") {
		return ExitConfigError
	}

	switch {
	case errors.Is(err, errInterrupted):
		return ExitInterrupted
	case completion.IsTimeout(err):
		return ExitTimeoutError
	}

	var streamErr *StreamError
	var clientErr *completion.ClientError
	if errors.As(err, &streamErr) || errors.As(err, &clientErr) {
		return ExitNetworkError
	}

	return ExitGeneralError
}

var errInterrupted = errors.New("interrupted")

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// PrintError writes err to w, as JSON when jsonMode is set.
func PrintError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		printErrorJSON(w, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

func printErrorJSON(w io.Writer, err error) {
	output := map[string]interface{}{
		"error":   err.Error(),
		"success": false,
	}

	var (
		cmdErr        *CommandError
		validationErr *ValidationError
		streamErr     *StreamError
	)
	switch {
	case errors.As(err, &validationErr):
		output["error_type"] = "validation_error"
		output["field"] = validationErr.Field
		output["value"] = validationErr.Value
		output["reason"] = validationErr.Reason
		if validationErr.Example != "" {
			output["example"] = validationErr.Example
		}
	case errors.As(err, &streamErr):
		output["error_type"] = "stream_error"
		output["panel"] = streamErr.Panel
		output["endpoint"] = streamErr.Endpoint
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
		output["reason"] = cmdErr.Reason
	default:
		output["error_type"] = "generic_error"
	}
	output["exit_code"] = ExitCode(err)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output)
}
