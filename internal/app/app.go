// Package app wires settings, stores and the calendar client into a Syncer.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"calmirror/internal/config"
	"calmirror/internal/google"
	"calmirror/internal/state"
	"calmirror/internal/syncer"
)

// App holds the components of one process.
type App struct {
	Settings *config.Settings
	Logger   *slog.Logger
	Calendar *google.CalendarClient
	Syncer   *syncer.Syncer

	store state.Store
}

// Options tweak how an App is built.
type Options struct {
	// ConfigFile, if set, is a YAML file whose keys take precedence over the
	// environment when resolving TARGET_EMAILS.
	ConfigFile string
	DryRun     bool
}

// New builds an App from settings.
func New(ctx context.Context, logger *slog.Logger, settings *config.Settings, opts Options) (*App, error) {
	var src config.Source = config.EnvSource{}
	if opts.ConfigFile != "" {
		file, err := config.LoadFile(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		src = config.Chain{file, config.EnvSource{}}
	}

	cal, err := google.NewClient(ctx, logger, settings.GoogleClientID, settings.GoogleClientSecret, settings.TokenFile())
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	store, err := state.Open(settings.StateBackend, settings.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	s := syncer.NewSyncer(logger, cal, state.NewCursor(store), config.NewReader(src), settings.CalendarID, opts.DryRun)
	return &App{
		Settings: settings,
		Logger:   logger,
		Calendar: cal,
		Syncer:   s,
		store:    store,
	}, nil
}

// Close releases the state store.
func (a *App) Close() error {
	return a.store.Close()
}

// SetupLogger returns a text logger on stderr at the named level.
func SetupLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
