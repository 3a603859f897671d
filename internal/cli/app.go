// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/compllama/internal/config"
	"github.com/jeranaias/compllama/internal/logging"
	"github.com/jeranaias/compllama/internal/session"
	"github.com/jeranaias/compllama/internal/telemetry"
)

// shutdownTimeout bounds the telemetry flush on exit.
const shutdownTimeout = 5 * time.Second

// Globals holds the persistent flags shared by every command.
type Globals struct {
	ConfigPath  string
	LogLevel    string
	NoTelemetry bool
}

// App is the loaded environment of one command invocation.
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	Telemetry *telemetry.Provider
	Version   VersionInfo

	Out io.Writer
	Err io.Writer
}

// NewApp loads configuration and opens the logger and telemetry provider.
// The caller must Close the returned App.
func NewApp(ctx context.Context, g Globals, info VersionInfo, out, errOut io.Writer) (*App, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.ConfigPath != "" {
		cfg, err = config.LoadFromPath(g.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &CommandError{Command: "config", Action: "load config", Reason: "invalid configuration", Err: err}
	}

	if g.LogLevel != "" {
		if _, err := logging.ParseLevel(g.LogLevel); err != nil {
			return nil, &ValidationError{Field: "--log-level", Value: g.LogLevel, Reason: "unknown level", Example: "--log-level debug"}
		}
		cfg.Log.Level = g.LogLevel
	}
	if g.NoTelemetry {
		cfg.Telemetry.Enabled = false
	}

	log, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		File:       config.ResolvePath(cfg.Log.File),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, &CommandError{Command: "config", Action: "open log", Reason: cfg.Log.File, Err: err}
	}

	tel, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:         cfg.Telemetry.Enabled,
		TracesFile:      config.ResolvePath(cfg.Telemetry.TracesFile),
		MetricsFile:     config.ResolvePath(cfg.Telemetry.MetricsFile),
		MetricsInterval: cfg.MetricsInterval(),
		Version:         info.Version,
	})
	if err != nil {
		log.Warn("telemetry disabled", zap.Error(err))
		tel = telemetry.Noop()
	}

	log.Debug("app started",
		zap.String("version", info.Version),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
	)

	return &App{
		Config:    cfg,
		Log:       log,
		Telemetry: tel,
		Version:   info,
		Out:       out,
		Err:       errOut,
	}, nil
}

// Close flushes telemetry and the log.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Telemetry.Shutdown(ctx); err != nil {
		a.Log.Warn("telemetry shutdown failed", zap.Error(err))
	}
	_ = a.Log.Sync()
}

// =============================================================================
// SESSION BUILDERS
// =============================================================================

// NewSession builds one session wired to the app's stream settings.
func (a *App) NewSession(name, endpoint string, loc session.Location) *session.Session {
	return session.New(session.Config{
		Name:               name,
		Endpoint:           endpoint,
		Location:           loc,
		Policy:             a.Config.Policy(),
		ParseErrorText:     a.Config.Stream.ParseErrorText,
		TransportErrorText: a.Config.Stream.TransportErrorText,
		BufferSize:         a.Config.Stream.ReadBufferBytes,
		HeaderTimeout:      a.Config.HeaderTimeout(),
		Logger:             a.Log,
		Telemetry:          a.Telemetry,
	})
}

// ChatDispatcher builds a single-panel dispatcher for the [chat] endpoint.
// endpoint overrides the configured one when non-empty.
func (a *App) ChatDispatcher(endpoint string, loc session.Location) *session.Dispatcher {
	if endpoint == "" {
		endpoint = a.Config.Chat.Endpoint
	}
	return session.NewDispatcher(a.NewSession("chat", endpoint, loc))
}

// CompareDispatcher builds one panel per compare endpoint. locs pairs with
// the endpoints by index.
func (a *App) CompareDispatcher(locs []session.Location) *session.Dispatcher {
	sessions := make([]*session.Session, len(a.Config.Compare.Endpoints))
	for i, endpoint := range a.Config.Compare.Endpoints {
		loc := session.DefaultLocation()
		if i < len(locs) {
			loc = locs[i]
		}
		sessions[i] = a.NewSession(PanelName(i), endpoint, loc)
	}
	return session.NewDispatcher(sessions...)
}

// ChatLocation returns the configured [chat] location.
func (a *App) ChatLocation() (session.Location, error) {
	return resolveLocation("chat", a.Config.Chat.State, a.Config.Chat.City)
}

// CompareLocations returns the configured [[compare.locations]], one per
// endpoint.
func (a *App) CompareLocations() ([]session.Location, error) {
	locs := make([]session.Location, len(a.Config.Compare.Endpoints))
	for i := range locs {
		var pc config.PanelConfig
		if i < len(a.Config.Compare.Locations) {
			pc = a.Config.Compare.Locations[i]
		}
		loc, err := resolveLocation(PanelName(i), pc.State, pc.City)
		if err != nil {
			return nil, err
		}
		locs[i] = loc
	}
	return locs, nil
}

// PanelName names compare panels: left, right, then "panel N".
func PanelName(i int) string {
	switch i {
	case 0:
		return "left"
	case 1:
		return "right"
	default:
		return fmt.Sprintf("panel %d", i+1)
	}
}

// resolveLocation validates a state/city pair against the catalog. An empty
// state yields the default location; an empty city picks the state's first
// city.
func resolveLocation(field, state, city string) (session.Location, error) {
	if state == "" && city == "" {
		return session.DefaultLocation(), nil
	}
	if state == "" {
		state = session.DefaultLocation().State
	}
	if session.Cities(state) == nil {
		return session.Location{}, &ValidationError{
			Field:   field + " state",
			Value:   state,
			Reason:  "unknown state",
			Example: "compllama locations",
		}
	}
	loc := session.Location{}.WithState(state)
	if city == "" {
		return loc, nil
	}
	if loc = loc.WithCity(city); loc.Known() {
		return loc, nil
	}
	return session.Location{}, &ValidationError{
		Field:   field + " city",
		Value:   city,
		Reason:  "not a city of " + state,
		Example: "compllama locations",
	}
}
