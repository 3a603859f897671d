// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for compllama.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ChatConfig: Single-session endpoint and location
//   - CompareConfig: Compare-mode endpoints and per-panel locations
//   - StreamConfig: Read size, header timeout and error surfacing
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (COMPLLAMA_*)
//   - ~/.compllama/config.toml
//   - ~/.compllama/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	endpoint := cfg.Chat.Endpoint
package config
