// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/compllama/internal/completion"
)

// =============================================================================
// TEST SERVERS
// =============================================================================

// streamServer is an NDJSON endpoint. Each request writes the configured
// lines one flush at a time. When gate is non-nil the handler writes
// the lines before gateAfter, then blocks until gate is closed or the
// client goes away.
type streamServer struct {
	*httptest.Server
	requests chan completion.Request
}

type serverOpts struct {
	lines     []string
	status    int
	gate      chan struct{}
	gateAfter int
}

func newStreamServer(t *testing.T, o serverOpts) *streamServer {
	t.Helper()
	s := &streamServer{requests: make(chan completion.Request, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completion.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			s.requests <- req
		}
		if o.status != 0 && o.status != http.StatusOK {
			http.Error(w, "upstream unavailable", o.status)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()

		for i, line := range o.lines {
			if o.gate != nil && i == o.gateAfter {
				select {
				case <-o.gate:
				case <-r.Context().Done():
					return
				}
			}
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
		if o.gate != nil && o.gateAfter >= len(o.lines) {
			select {
			case <-o.gate:
			case <-r.Context().Done():
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

// newTestSession binds a session to srv and closes it on cleanup.
func newTestSession(t *testing.T, srv *streamServer, cfg Config) *Session {
	t.Helper()
	cfg.Client = completion.NewClient(&completion.Config{
		Endpoint:   srv.URL,
		HTTPClient: srv.Client(),
	})
	if cfg.Endpoint == "" {
		cfg.Endpoint = srv.URL
	}
	s := New(cfg)
	t.Cleanup(s.Close)
	return s
}

func contents(t *testing.T, s *Session) []string {
	t.Helper()
	snap := s.Transcript().Snapshot()
	out := make([]string, len(snap.Messages))
	for i, m := range snap.Messages {
		out[i] = m.Role.String() + ":" + m.Content
	}
	return out
}

func content(line string) string {
	b, err := json.Marshal(map[string]string{"content": line})
	if err != nil {
		panic(err)
	}
	return string(b)
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for value")
	}
	var zero T
	return zero
}
