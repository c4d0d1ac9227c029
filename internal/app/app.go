// Package app wires all Lectern subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// storage layer, the analysis adapter, the session manager, and the HTTP
// server; Run blocks until the context is cancelled or the server fails; and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithAnalyzer). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lectern-ai/lectern/internal/analysis"
	"github.com/lectern-ai/lectern/internal/api"
	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/lecture"
	"github.com/lectern-ai/lectern/internal/session"
	"github.com/lectern-ai/lectern/pkg/provider/llm"
	"github.com/lectern-ai/lectern/pkg/provider/stt"
)

// shutdownTimeout bounds how long Shutdown waits for sessions and in-flight
// requests to drain.
const shutdownTimeout = 15 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// Extract handles the high-frequency analysis calls.
	Extract llm.Provider

	// Research handles deep-research calls. Falls back to Extract when nil.
	Research llm.Provider

	// STT streams speech to text.
	STT stt.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store    lecture.Store
	analyzer analysis.Analyzer
	sessions *SessionManager
	server   *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a lecture store instead of creating one from config.
func WithStore(s lecture.Store) Option {
	return func(a *App) { a.store = s }
}

// WithAnalyzer injects an analyzer instead of building one from the LLM providers.
func WithAnalyzer(an analysis.Analyzer) Option {
	return func(a *App) { a.analyzer = an }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initAnalyzer(); err != nil {
		return nil, fmt.Errorf("app: init analyzer: %w", err)
	}
	if providers.STT == nil {
		return nil, errors.New("app: an stt provider is required")
	}

	a.sessions = NewSessionManager(
		a.store,
		a.analyzer,
		providers.STT,
		stt.SessionConfig{
			Language:   cfg.STT.Language,
			Encoding:   cfg.STT.Encoding,
			SampleRate: cfg.STT.SampleRate,
		},
		session.RuntimeConfig{
			Scheduler: session.SchedulerConfig{
				PipelineInterval:     cfg.Pipeline.Interval.Std(),
				RetryBackoff:         cfg.Pipeline.RetryBackoff.Std(),
				DeepResearchInterval: cfg.Pipeline.DeepResearchInterval.Std(),
				EmphasisThreshold:    cfg.Pipeline.EmphasisThreshold,
			},
		},
		slog.Default(),
	)

	srv := api.New(api.Deps{
		Store:    a.store,
		Sessions: a.sessions,
		Analyzer: a.analyzer,
	}, api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, slog.Default())

	a.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStore opens the PostgreSQL store, or falls back to the in-memory store
// when no DSN is configured.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	if dsn := a.cfg.Database.DSN; dsn != "" {
		store, err := lecture.NewPostgresStore(ctx, dsn)
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		return nil
	}

	slog.Warn("no database configured, lectures will not survive restarts")
	a.store = lecture.NewMemoryStore()
	return nil
}

// initAnalyzer builds the analysis adapter over the configured LLM providers.
func (a *App) initAnalyzer() error {
	if a.analyzer != nil {
		return nil
	}
	if a.providers.Extract == nil {
		return errors.New("an extract llm provider is required")
	}
	research := a.providers.Research
	if research == nil {
		research = a.providers.Extract
	}
	a.analyzer = analysis.NewAdapter(a.providers.Extract, research)
	return nil
}

// Sessions exposes the session manager, mainly for tests.
func (a *App) Sessions() *SessionManager {
	return a.sessions
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails. Call Shutdown afterwards to tear subsystems down.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	}
}

// Shutdown drains live sessions, stops the HTTP server, and runs the closers
// in order. It respects the context deadline: if ctx expires, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		slog.Info("shutting down", "closers", len(a.closers))

		a.sessions.DrainAll(ctx)

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
