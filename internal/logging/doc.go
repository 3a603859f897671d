// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured logger shared by every component.
//
// Logs are JSON lines written to a size-rotated file. Nothing is written to
// stdout or stderr because the terminal belongs to the TUI.
//
// # Usage
//
//	log, err := logging.New(logging.Config{Level: "debug", File: path})
//	if err != nil {
//	    return err
//	}
//	defer log.Sync()
//	log.Info("stream complete", zap.String("session", "left"))
package logging
