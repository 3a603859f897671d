// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"tiny limit", "hello", 2, "he"},
		{"multibyte", "héllo wörld", 8, "héllo..."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := Message{Content: tc.content}
			assert.Equal(t, tc.want, m.Preview(tc.maxLen))
		})
	}
}

func TestRole_DisplayName(t *testing.T) {
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Assistant", RoleAssistant.DisplayName())
	assert.Equal(t, "tool", Role("tool").DisplayName())
}

func TestGenerateID_Ordered(t *testing.T) {
	prev := generateID()
	require.True(t, strings.HasPrefix(prev, "msg_"))
	for i := 0; i < 100; i++ {
		next := generateID()
		assert.Greater(t, next, prev, "ids must be time-ordered")
		prev = next
	}
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_AppendUserAndPlaceholder(t *testing.T) {
	tr := NewTranscript()
	user := tr.AppendUser("Hi")
	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, "Hi", user.Content)
	assert.False(t, user.Streaming)

	h := tr.OpenPlaceholder()
	msg, ok := tr.Get(h)
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Empty(t, msg.Content)
	assert.True(t, msg.Streaming)
	assert.Equal(t, 2, tr.Len())

	tr.Finalize(h)
	msg, _ = tr.Get(h)
	assert.False(t, msg.Streaming)
}

func TestTranscript_AppendAndReplace(t *testing.T) {
	tr := NewTranscript()
	h := tr.OpenPlaceholder()

	require.True(t, tr.Append(h, "Hello"))
	require.True(t, tr.Append(h, " there"))
	msg, _ := tr.Get(h)
	assert.Equal(t, "Hello there", msg.Content)

	require.True(t, tr.Replace(h, "gone"))
	msg, _ = tr.Get(h)
	assert.Equal(t, "gone", msg.Content)

	assert.False(t, tr.Append(Handle("msg_missing"), "x"))
	assert.False(t, tr.Replace(Handle("msg_missing"), "x"))
}

func TestTranscript_AttachSources(t *testing.T) {
	src := []Source{{Label: "CA Labor Code", URL: "https://example.com/ca"}}

	t.Run("before content", func(t *testing.T) {
		tr := NewTranscript()
		h := tr.OpenPlaceholder()
		assert.True(t, tr.AttachSources(h, src))
		assert.False(t, tr.AttachSources(h, src), "sources attach once")
		msg, _ := tr.Get(h)
		assert.Equal(t, src, msg.Sources)
	})

	t.Run("after content", func(t *testing.T) {
		tr := NewTranscript()
		h := tr.OpenPlaceholder()
		tr.Append(h, "text")
		assert.False(t, tr.AttachSources(h, src))
		msg, _ := tr.Get(h)
		assert.Empty(t, msg.Sources)
	})
}

func TestSnapshot_ReplySkipsTrailingErrors(t *testing.T) {
	tr := NewTranscript()
	_, ok := tr.Snapshot().Reply()
	assert.False(t, ok)

	tr.AppendUser("first")
	h1 := tr.OpenPlaceholder()
	tr.Append(h1, "old reply")
	tr.AppendUser("second")

	_, ok = tr.Snapshot().Reply()
	assert.False(t, ok, "no reply to the latest question yet")

	h2 := tr.OpenPlaceholder()
	tr.Append(h2, "new reply")
	tr.AppendAssistant(DefaultParseErrorText)

	snap := tr.Snapshot()
	reply, ok := snap.Reply()
	require.True(t, ok)
	assert.Equal(t, "new reply", reply.Content)

	last, _ := snap.LastAssistant()
	assert.Equal(t, DefaultParseErrorText, last.Content)
}

func TestTranscript_LastAssistantScansFromEnd(t *testing.T) {
	tr := NewTranscript()
	_, ok := tr.LastAssistant()
	assert.False(t, ok)

	tr.AppendUser("one")
	first := tr.OpenPlaceholder()
	second := tr.AppendAssistant("error")
	tr.AppendUser("two")

	h, ok := tr.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, second, h)
	assert.NotEqual(t, first, h)

	snap := tr.Snapshot()
	last, ok := snap.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "error", last.Content)
}

func TestTranscript_SnapshotIsImmutable(t *testing.T) {
	tr := NewTranscript()
	h := tr.OpenPlaceholder()
	tr.AttachSources(h, []Source{{Label: "a"}})
	tr.Append(h, "v1")

	snap := tr.Snapshot()
	snap.Messages[0].Content = "mutated"
	snap.Messages[0].Sources[0].Label = "mutated"

	tr.Append(h, "v2")
	msg, _ := tr.Get(h)
	assert.Equal(t, "v1v2", msg.Content)
	assert.Equal(t, "a", msg.Sources[0].Label)
	assert.Equal(t, "mutated", snap.Messages[0].Content)
}

func TestTranscript_VersionIncreases(t *testing.T) {
	tr := NewTranscript()
	v0 := tr.Snapshot().Version
	h := tr.OpenPlaceholder()
	v1 := tr.Snapshot().Version
	tr.Append(h, "x")
	v2 := tr.Snapshot().Version
	assert.Less(t, v0, v1)
	assert.Less(t, v1, v2)
}

// =============================================================================
// SUBSCRIPTION TESTS
// =============================================================================

func TestTranscript_SubscribeLatestValue(t *testing.T) {
	tr := NewTranscript()
	snaps, stop := tr.Subscribe()
	defer stop()

	initial := <-snaps
	assert.Equal(t, 0, initial.Len())

	h := tr.OpenPlaceholder()
	for i := 0; i < 50; i++ {
		tr.Append(h, "x")
	}

	// Nobody read in between, so only the newest snapshot is pending.
	latest := <-snaps
	assert.Equal(t, strings.Repeat("x", 50), latest.Messages[0].Content)
	assert.Equal(t, tr.Snapshot().Version, latest.Version)

	select {
	case s := <-snaps:
		t.Fatalf("unexpected extra snapshot version %d", s.Version)
	default:
	}
}

func TestTranscript_UnsubscribeClosesChannel(t *testing.T) {
	tr := NewTranscript()
	snaps, stop := tr.Subscribe()
	<-snaps
	stop()
	stop()

	tr.AppendUser("after")
	_, open := <-snaps
	assert.False(t, open)
}

func TestTranscript_ConcurrentWriters(t *testing.T) {
	tr := NewTranscript()
	snaps, stop := tr.Subscribe()
	defer stop()

	handles := make([]Handle, 4)
	for i := range handles {
		handles[i] = tr.OpenPlaceholder()
	}

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tr.Append(h, "a")
			}
		}(h)
	}

	done := make(chan struct{})
	go func() {
		for range snaps {
		}
		close(done)
	}()

	wg.Wait()
	for _, h := range handles {
		msg, _ := tr.Get(h)
		assert.Len(t, msg.Content, 200)
	}
	stop()
	<-done
}

// =============================================================================
// REDUCER TESTS
// =============================================================================

func TestReducer_SentinelThenContent(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("Hi")
	h := tr.OpenPlaceholder()
	r := NewReducer(tr, h, PolicyOverwrite)

	assert.Equal(t, OutcomeSentinel, r.Apply("Assistant> ", true, nil))
	assert.Equal(t, OutcomeAppended, r.Apply("Hello", true, nil))
	assert.Equal(t, OutcomeAppended, r.Apply(" there", true, nil))

	msg, _ := tr.Get(h)
	assert.Equal(t, "Hello there", msg.Content)
	assert.Equal(t, 3, r.Tokens())
	assert.Equal(t, 2, r.Appended())
	assert.False(t, r.FirstToken().IsZero())
}

func TestReducer_IgnoresEmpty(t *testing.T) {
	tr := NewTranscript()
	h := tr.OpenPlaceholder()
	r := NewReducer(tr, h, PolicyOverwrite)

	assert.Equal(t, OutcomeIgnored, r.Apply("", false, nil))
	assert.Equal(t, OutcomeIgnored, r.Apply("", true, nil))
	assert.Equal(t, 0, r.Tokens())
	assert.True(t, r.FirstToken().IsZero())
}

func TestReducer_SentinelOnlyWhenExact(t *testing.T) {
	tr := NewTranscript()
	h := tr.OpenPlaceholder()
	r := NewReducer(tr, h, PolicyOverwrite)

	assert.Equal(t, OutcomeAppended, r.Apply("Assistant>", true, nil))
	assert.Equal(t, OutcomeAppended, r.Apply(" Assistant> x", true, nil))
	msg, _ := tr.Get(h)
	assert.Equal(t, "Assistant> Assistant> x", msg.Content)
}

func TestReducer_DroppedWhenHandleMissing(t *testing.T) {
	tr := NewTranscript()
	r := NewReducer(tr, Handle("msg_nowhere"), PolicyOverwrite)
	assert.Equal(t, OutcomeDropped, r.Apply("x", true, nil))
	assert.Equal(t, 0, tr.Len())
}

func TestReducer_SourcesBeforeFirstContent(t *testing.T) {
	tr := NewTranscript()
	h := tr.OpenPlaceholder()
	r := NewReducer(tr, h, PolicyOverwrite)

	src := []Source{{Label: "TX Payday Law", URL: "https://example.com/tx"}}
	r.Apply("", false, src)
	r.Apply("text", true, []Source{{Label: "late"}})

	msg, _ := tr.Get(h)
	assert.Equal(t, src, msg.Sources)
}

func TestReducer_MalformedOverwrite(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("Hi")
	h := tr.OpenPlaceholder()
	r := NewReducer(tr, h, PolicyOverwrite)

	r.Apply("partial", true, nil)
	got, changed := r.Malformed()
	assert.Equal(t, h, got)
	assert.True(t, changed)

	assert.Equal(t, OutcomeAppended, r.Apply("ok", true, nil))
	_, changed = r.Malformed()
	assert.False(t, changed, "second malformed line is only counted")
	assert.Equal(t, OutcomeAppended, r.Apply("!", true, nil))

	msg, _ := tr.Get(h)
	assert.Equal(t, DefaultParseErrorText+"ok!", msg.Content)
	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, 2, r.MalformedCount())
	assert.Equal(t, 3, r.Tokens())
	assert.True(t, r.ParseErrorShown())
	assert.False(t, r.Failed())
}

func TestReducer_MalformedFirstLineThenValid(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("Hi")
	h := tr.OpenPlaceholder()
	r := NewReducer(tr, h, PolicyOverwrite)

	_, changed := r.Malformed()
	require.True(t, changed)
	assert.Equal(t, OutcomeAppended, r.Apply("ok", true, nil))

	msg, _ := tr.Get(h)
	assert.Equal(t, DefaultParseErrorText+"ok", msg.Content)
	assert.Equal(t, 1, r.Appended())
}

func TestReducer_MalformedAfterFailIsCounted(t *testing.T) {
	tr := NewTranscript()
	h := tr.OpenPlaceholder()
	r := NewReducer(tr, h, PolicyOverwrite)

	require.True(t, r.Fail())
	_, changed := r.Malformed()
	assert.False(t, changed)

	msg, _ := tr.Get(h)
	assert.Equal(t, DefaultTransportErrorText, msg.Content)
}

func TestReducer_MalformedAppend(t *testing.T) {
	tr := NewTranscript()
	h := tr.OpenPlaceholder()
	r := NewReducer(tr, h, PolicyAppend, WithParseErrorText("bad line"))

	e1, _ := r.Malformed()
	assert.Equal(t, OutcomeAppended, r.Apply("ok", true, nil))
	e2, _ := r.Malformed()

	assert.NotEqual(t, e1, e2)
	assert.Equal(t, 3, tr.Len())

	msg, _ := tr.Get(h)
	assert.Equal(t, "ok", msg.Content)
	errMsg, _ := tr.Get(e2)
	assert.Equal(t, "bad line", errMsg.Content)
}

func TestReducer_Fail(t *testing.T) {
	tr := NewTranscript()
	h := tr.OpenPlaceholder()
	r := NewReducer(tr, h, "", WithTransportErrorText("offline"))

	r.Apply("half", true, nil)
	require.True(t, r.Fail())
	assert.Equal(t, OutcomeSuppressed, r.Apply("more", true, nil))

	msg, _ := tr.Get(h)
	assert.Equal(t, "offline", msg.Content)
}

func TestReducer_Idempotent(t *testing.T) {
	fragments := []string{"Assistant> ", "The ", "", "minimum ", "wage", " is $16.50."}

	run := func() string {
		tr := NewTranscript()
		h := tr.OpenPlaceholder()
		r := NewReducer(tr, h, PolicyOverwrite)
		for _, f := range fragments {
			r.Apply(f, true, nil)
		}
		msg, _ := tr.Get(h)
		return msg.Content
	}
	assert.Equal(t, run(), run())
	assert.Equal(t, "The minimum wage is $16.50.", run())
}

func TestParseMalformedPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    MalformedPolicy
		wantErr bool
	}{
		{"", PolicyOverwrite, false},
		{"overwrite", PolicyOverwrite, false},
		{" Append ", PolicyAppend, false},
		{"ignore", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMalformedPolicy(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "sentinel", OutcomeSentinel.String())
	assert.Equal(t, "suppressed", OutcomeSuppressed.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
