// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Sentinel is the role-preamble marker some services emit as the first
// fragment. It is never shown, but it counts as a received token.
const Sentinel = "Assistant> "

const (
	// DefaultParseErrorText replaces the target when a stream line is not JSON.
	DefaultParseErrorText = "An error occurred while processing the response."

	// DefaultTransportErrorText replaces the target when the stream fails.
	DefaultTransportErrorText = "An error occurred while streaming the response."
)

// =============================================================================
// OUTCOME TYPE
// =============================================================================

// Outcome describes what Apply did with one record.
type Outcome int

const (
	// OutcomeIgnored means the record carried no content.
	OutcomeIgnored Outcome = iota
	// OutcomeSentinel means the record was the role marker and was discarded.
	OutcomeSentinel
	// OutcomeAppended means the content was appended to the target.
	OutcomeAppended
	// OutcomeSuppressed means the stream failed and the target shows the
	// transport error; the content was counted but not appended.
	OutcomeSuppressed
	// OutcomeDropped means the target handle did not resolve.
	OutcomeDropped
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeSentinel:
		return "sentinel"
	case OutcomeAppended:
		return "appended"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// =============================================================================
// MALFORMED POLICY
// =============================================================================

// MalformedPolicy selects how a line that fails to parse is surfaced.
type MalformedPolicy string

const (
	// PolicyOverwrite replaces the target with the parse error text on the
	// first malformed line. Later malformed lines are only counted; later
	// valid fragments keep appending after the error text.
	PolicyOverwrite MalformedPolicy = "overwrite"

	// PolicyAppend appends a new assistant error message for every malformed
	// line while the target keeps accumulating.
	PolicyAppend MalformedPolicy = "append"
)

// ParseMalformedPolicy converts a config string into a MalformedPolicy.
// An empty string selects PolicyOverwrite.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch MalformedPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyOverwrite:
		return PolicyOverwrite, nil
	case PolicyAppend:
		return PolicyAppend, nil
	default:
		return "", fmt.Errorf("unknown malformed policy %q (want %q or %q)", s, PolicyOverwrite, PolicyAppend)
	}
}

// =============================================================================
// REDUCER TYPE
// =============================================================================

// Reducer folds decoded stream records into one assistant message. It is
// the only writer of its target while the stream is open.
type Reducer struct {
	mu sync.Mutex

	t      *Transcript
	target Handle
	policy MalformedPolicy

	parseErrText     string
	transportErrText string

	tokens     int
	appended   int
	malformed  int
	parseErr   bool
	failed     bool
	firstToken time.Time
	now        func() time.Time
}

// ReducerOption configures a Reducer.
type ReducerOption func(*Reducer)

// WithParseErrorText overrides DefaultParseErrorText.
func WithParseErrorText(text string) ReducerOption {
	return func(r *Reducer) {
		if text != "" {
			r.parseErrText = text
		}
	}
}

// WithTransportErrorText overrides DefaultTransportErrorText.
func WithTransportErrorText(text string) ReducerOption {
	return func(r *Reducer) {
		if text != "" {
			r.transportErrText = text
		}
	}
}

// NewReducer creates a reducer targeting the message referenced by h.
func NewReducer(t *Transcript, h Handle, policy MalformedPolicy, opts ...ReducerOption) *Reducer {
	if policy == "" {
		policy = PolicyOverwrite
	}
	r := &Reducer{
		t:                t,
		target:           h,
		policy:           policy,
		parseErrText:     DefaultParseErrorText,
		transportErrText: DefaultTransportErrorText,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Target returns the handle this reducer writes to.
func (r *Reducer) Target() Handle {
	return r.target
}

// Apply folds one record into the target. hasContent reports whether the
// record carried a string content field at all.
func (r *Reducer) Apply(content string, hasContent bool, sources []Source) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(sources) > 0 && !r.failed {
		r.t.AttachSources(r.target, sources)
	}

	if !hasContent || content == "" {
		return OutcomeIgnored
	}

	r.tokens++
	if r.firstToken.IsZero() {
		r.firstToken = r.now()
	}

	if content == Sentinel {
		return OutcomeSentinel
	}
	if r.failed {
		return OutcomeSuppressed
	}
	if !r.t.Append(r.target, content) {
		return OutcomeDropped
	}
	r.appended++
	return OutcomeAppended
}

// Malformed records one line that failed to parse and surfaces it according
// to the policy. It returns the handle of the message that now shows the
// error text, and whether the transcript changed.
func (r *Reducer) Malformed() (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.malformed++
	switch r.policy {
	case PolicyAppend:
		return r.t.AppendAssistant(r.parseErrText), true
	default:
		if r.parseErr || r.failed {
			return r.target, false
		}
		r.parseErr = true
		return r.target, r.t.Replace(r.target, r.parseErrText)
	}
}

// Fail replaces the target with the transport error text. The target stays
// terminal afterwards.
func (r *Reducer) Fail() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = true
	return r.t.Replace(r.target, r.transportErrText)
}

// =============================================================================
// COUNTERS
// =============================================================================

// Tokens returns the number of non-empty content fragments received,
// sentinels included.
func (r *Reducer) Tokens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens
}

// Appended returns the number of fragments appended to the target.
func (r *Reducer) Appended() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appended
}

// MalformedCount returns the number of malformed lines seen.
func (r *Reducer) MalformedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.malformed
}

// ParseErrorShown reports whether the target was overwritten with the parse
// error text.
func (r *Reducer) ParseErrorShown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parseErr
}

// Failed reports whether the target has been replaced by the transport
// error text.
func (r *Reducer) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// FirstToken returns when the first token arrived, or the zero time.
func (r *Reducer) FirstToken() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstToken
}
