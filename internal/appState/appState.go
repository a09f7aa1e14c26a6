package appState

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/isaacphi/mcpchat/internal/config"
	"github.com/isaacphi/mcpchat/internal/obs"
)

// App holds the global application state
type App struct {
	Config  *config.ConfigSchema
	Logger  *slog.Logger
	Metrics *obs.Metrics
	closer  io.Closer // For cleanup of resources like log files
}

var (
	globalApp *App
	initOnce  sync.Once
	initErr   error
	mu        sync.RWMutex
)

// Initialize creates the global app instance with the given overrides
func Initialize(overrides *config.RuntimeOverrides) error {
	return InitializeWithOutput(overrides, os.Stdout)
}

// InitializeWithOutput is Initialize with console logs sent to w instead of
// stdout. A configured log file takes precedence over w.
func InitializeWithOutput(overrides *config.RuntimeOverrides, w io.Writer) error {
	initOnce.Do(func() {
		cfg, err := config.New(overrides)
		if err != nil {
			initErr = fmt.Errorf("failed to load config: %w", err)
			return
		}

		app, err := build(cfg, w)
		if err != nil {
			initErr = err
			return
		}

		mu.Lock()
		globalApp = app
		mu.Unlock()

		// Set as default logger
		slog.SetDefault(app.Logger)
	})
	return initErr
}

func build(cfg *config.ConfigSchema, stdout io.Writer) (*App, error) {
	logger, closer, err := setupLogger(cfg.Log, stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	metrics, err := obs.New(cfg.Metrics)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("failed to setup metrics: %w", err)
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		closer:  closer,
	}, nil
}

// Get returns the global app instance and panics if not initialized
func Get() *App {
	mu.RLock()
	defer mu.RUnlock()

	if globalApp == nil {
		panic("app not initialized")
	}
	return globalApp
}

// TryGet returns the global app instance and a boolean indicating if it's initialized
func TryGet() (*App, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return globalApp, globalApp != nil
}

// Cleanup flushes metrics and closes the log file
func Cleanup() error {
	mu.Lock()
	defer mu.Unlock()

	if globalApp == nil {
		return nil
	}
	return globalApp.close()
}

func (a *App) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := a.Metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown metrics: %w", err))
	}
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(cfg config.Log, stdout io.Writer) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.LogLevel),
		AddSource: true,
	}

	if cfg.LogFile == "" {
		// Use stdout, no cleanup needed
		return slog.New(slog.NewTextHandler(stdout, opts)), nil, nil
	}

	// Fail early on unwritable paths; lumberjack only reports them on first write.
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	f.Close()

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return slog.New(slog.NewTextHandler(rotator, opts)), rotator, nil
}
