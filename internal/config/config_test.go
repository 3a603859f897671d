// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/compllama/internal/model"
)

// isolate points ConfigDir at a temp directory and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("COMPLLAMA_HOME", dir)
	for _, key := range []string{
		"COMPLLAMA_CHAT_ENDPOINT",
		"COMPLLAMA_COMPARE_ENDPOINTS",
		"COMPLLAMA_LOG_LEVEL",
		"COMPLLAMA_MALFORMED_POLICY",
		"COMPLLAMA_TELEMETRY",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, model.PolicyOverwrite, cfg.Policy())
	assert.Equal(t, 30*time.Second, cfg.HeaderTimeout())
	assert.Equal(t, 10*time.Second, cfg.MetricsInterval())
	assert.Len(t, cfg.Compare.Endpoints, 2)
	assert.Equal(t, "California", cfg.Compare.Locations[0].State)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Chat.Endpoint, cfg.Chat.Endpoint)
}

func TestLoad_TOML(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), `
[chat]
endpoint = "http://chat.internal:9000/chat-stream"

[compare]
endpoints = ["http://a.internal/chat", "http://b.internal/chat", "http://c.internal/chat"]

[[compare.locations]]
state = "Ohio"
city = "Akron"

[stream]
malformed_policy = "append"
read_buffer_bytes = 512
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://chat.internal:9000/chat-stream", cfg.Chat.Endpoint)
	assert.Len(t, cfg.Compare.Endpoints, 3)
	assert.Equal(t, []PanelConfig{{State: "Ohio", City: "Akron"}}, cfg.Compare.Locations)
	assert.Equal(t, model.PolicyAppend, cfg.Policy())
	assert.Equal(t, 512, cfg.Stream.ReadBufferBytes)

	// Untouched sections keep defaults.
	assert.Equal(t, 30, cfg.Stream.HeaderTimeoutSecs)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, model.DefaultParseErrorText, cfg.Stream.ParseErrorText)
}

func TestLoad_SingleEndpointTrimsDefaultLocations(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), `
[compare]
endpoints = ["http://solo.internal/chat"]
`)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Compare.Locations, 1)
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.json"), `{"log": {"level": "debug"}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromPath_UnknownKey(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "typo.toml")
	writeFile(t, path, "[stream]\nmalformed_polcy = \"append\"\n")

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed_polcy")
}

func TestLoadFromPath_Invalid(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.toml")
	writeFile(t, path, "[chat]\nendpoint = \"ftp://nowhere\"\n[stream]\nmalformed_policy = \"ignore\"\n")

	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, len(verrs))
	for i, v := range verrs {
		fields[i] = v.Field
	}
	assert.ElementsMatch(t, []string{"chat.endpoint", "stream.malformed_policy"}, fields)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("COMPLLAMA_CHAT_ENDPOINT", "http://env.internal/chat-stream")
	t.Setenv("COMPLLAMA_COMPARE_ENDPOINTS", " http://x.internal/chat , ,http://y.internal/chat")
	t.Setenv("COMPLLAMA_LOG_LEVEL", "warn")
	t.Setenv("COMPLLAMA_MALFORMED_POLICY", "append")
	t.Setenv("COMPLLAMA_TELEMETRY", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://env.internal/chat-stream", cfg.Chat.Endpoint)
	assert.Equal(t, []string{"http://x.internal/chat", "http://y.internal/chat"}, cfg.Compare.Endpoints)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, model.PolicyAppend, cfg.Policy())
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestApplyEnvOverrides_TrimsLocations(t *testing.T) {
	isolate(t)
	t.Setenv("COMPLLAMA_COMPARE_ENDPOINTS", "http://only.internal/chat")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Compare.Locations, 1)
}

func TestSetDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4096, cfg.Stream.ReadBufferBytes)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestValidate_Ranges(t *testing.T) {
	cfg := Default()
	cfg.Stream.ReadBufferBytes = 0
	cfg.Stream.HeaderTimeoutSecs = -1
	cfg.Log.Level = "chatty"
	cfg.Compare.Endpoints = []string{"http://a/chat"}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "stream.read_buffer_bytes")
	assert.Contains(t, msg, "stream.header_timeout_secs")
	assert.Contains(t, msg, "log.level")
	assert.Contains(t, msg, "compare.locations")
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Chat.State = "Georgia"
	cfg.Chat.City = "Savannah"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Stream.MalformedPolicy = "append"
	require.NoError(t, SaveJSON(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestResolvePath(t *testing.T) {
	dir := isolate(t)
	assert.Equal(t, filepath.Join(dir, "compllama.log"), ResolvePath("compllama.log"))
	assert.Equal(t, "/var/log/x.log", ResolvePath("/var/log/x.log"))
	assert.Equal(t, "", ResolvePath(""))
}
