// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ============================================================================
// SCRIPT RELOAD
// ============================================================================

// DefaultReloadDebounce is how long the script must be quiet before it is
// reloaded.
const DefaultReloadDebounce = 200 * time.Millisecond

// WatchScript reloads the reply script whenever path changes, until ctx is
// done. The parent directory is watched so editors that save by rename are
// picked up. A script that fails to load is logged and the previous one is
// kept.
//
// reloaded, when non-nil, receives the line count after each successful
// reload.
func (s *Server) WatchScript(ctx context.Context, path string, debounce time.Duration, reloaded func(lines int)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve script path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go s.watchLoop(ctx, watcher, abs, debounce, reloaded)
	return nil
}

func (s *Server) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration, reloaded func(int)) {
	defer watcher.Close()
	log := s.log.With(zap.String("script", path))

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			lines, err := LoadScript(path)
			if err != nil {
				log.Warn("script reload failed; keeping previous script", zap.Error(err))
				continue
			}
			s.SetScript(lines)
			log.Info("script reloaded", zap.Int("lines", len(lines)))
			if reloaded != nil {
				reloaded(len(lines))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("script watcher error", zap.Error(err))
		}
	}
}
