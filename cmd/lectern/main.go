// Command lectern is the main entry point for the Lectern lecture
// assistance server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/lectern-ai/lectern/internal/app"
	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/observe"
	"github.com/lectern-ai/lectern/pkg/provider/llm"
	"github.com/lectern-ai/lectern/pkg/provider/llm/anyllm"
	"github.com/lectern-ai/lectern/pkg/provider/llm/openai"
	"github.com/lectern-ai/lectern/pkg/provider/stt"
	"github.com/lectern-ai/lectern/pkg/provider/stt/deepgram"
	"github.com/lectern-ai/lectern/pkg/provider/stt/pulse"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Local development convenience; a missing .env is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "lectern: load .env: %v\n", err)
	}

	// Configuration is file plus environment only; LECTERN_CONFIG overrides
	// the default file location.
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "lectern: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	slog.Info("lectern starting",
		"addr", cfg.Server.Addr,
		"log_level", cfg.Log.Level,
	)

	// Metrics and tracing.
	shutdownObserve, err := observe.InitProvider(context.Background(), observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// The native OpenAI-compatible client carries web-search result parsing,
	// which deep research depends on. Groq runs through the same client.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		return openai.New(entry.APIKey, entry.Model, openaiOptions(entry)...)
	})
	reg.RegisterLLM("groq", func(entry config.ProviderEntry) (llm.Provider, error) {
		opts := []openai.Option{openai.WithBaseURL(openai.GroqBaseURL)}
		if entry.BaseURL != "" {
			opts = []openai.Option{openai.WithBaseURL(entry.BaseURL)}
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining vendors go through any-llm.
	for _, providerName := range []string{"gemini", "mistral"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterSTT("deepgram", func(cfg config.STTConfig) (stt.Provider, error) {
		var opts []deepgram.Option
		if cfg.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Language != "" {
			opts = append(opts, deepgram.WithLanguage(cfg.Language))
		}
		if cfg.Encoding != "" {
			opts = append(opts, deepgram.WithEncoding(cfg.Encoding))
		}
		if cfg.SampleRate > 0 {
			opts = append(opts, deepgram.WithSampleRate(cfg.SampleRate))
		}
		return deepgram.New(cfg.APIKey, opts...)
	})

	reg.RegisterSTT("pulse", func(cfg config.STTConfig) (stt.Provider, error) {
		opts := []pulse.Option{
			pulse.WithWordTimestamps(cfg.WordTimestamps),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, pulse.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Language != "" {
			opts = append(opts, pulse.WithLanguage(cfg.Language))
		}
		if cfg.Encoding != "" {
			opts = append(opts, pulse.WithEncoding(cfg.Encoding))
		}
		if cfg.SampleRate > 0 {
			opts = append(opts, pulse.WithSampleRate(cfg.SampleRate))
		}
		return pulse.New(cfg.APIKey, opts...)
	})
}

func openaiOptions(entry config.ProviderEntry) []openai.Option {
	var opts []openai.Option
	if entry.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(entry.BaseURL))
	}
	return opts
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.LLM.Extract.Name; name != "" {
		p, err := reg.CreateLLM(cfg.LLM.Extract)
		if err != nil {
			return nil, fmt.Errorf("create extract llm provider %q: %w", name, err)
		}
		ps.Extract = p
		slog.Info("provider created", "kind", "llm/extract", "name", name, "model", cfg.LLM.Extract.Model)
	}

	if name := cfg.LLM.Research.Name; name != "" {
		p, err := reg.CreateLLM(cfg.LLM.Research)
		if err != nil {
			return nil, fmt.Errorf("create research llm provider %q: %w", name, err)
		}
		ps.Research = p
		slog.Info("provider created", "kind", "llm/research", "name", name, "model", cfg.LLM.Research.Model)
	}

	if name := cfg.STT.Provider; name != "" {
		p, err := reg.CreateSTT(cfg.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = p
		slog.Info("provider created", "kind", "stt", "name", name)
	}

	return ps, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
