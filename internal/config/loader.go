package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variable overrides applied after file loading.
const (
	EnvConfigPath  = "LECTERN_CONFIG"
	EnvAddr        = "LECTERN_ADDR"
	EnvLogLevel    = "LECTERN_LOG_LEVEL"
	EnvDatabaseDSN = "LECTERN_DATABASE_DSN"
)

// DefaultPath is the config file location used when LECTERN_CONFIG is unset.
const DefaultPath = "lectern.yml"

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "groq", "gemini", "mistral", "ollama"},
	"stt": {"pulse", "deepgram"},
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config]. A missing file is not an
// error: defaults plus environment overrides are used instead.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("config file not found, using defaults", "path", path)
		cfg := Default()
		applyEnvOverrides(cfg)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references
// against the process environment, applies environment overrides, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	expanded := os.Expand(string(raw), func(name string) string {
		return os.Getenv(name)
	})

	cfg := Default()
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overwrites the common knobs from dedicated environment
// variables when they are set.
func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv(EnvAddr); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = LogLevel(level)
	}
	if dsn := os.Getenv(EnvDatabaseDSN); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Recoverable oddities are logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	// STT
	validateProviderName("stt", cfg.STT.Provider)
	if cfg.STT.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("stt.sample_rate %d must not be negative", cfg.STT.SampleRate))
	}
	if cfg.STT.Provider != "" && cfg.STT.APIKey == "" {
		slog.Warn("stt.api_key is empty; live transcription will fail to authenticate")
	}

	// LLM
	validateProviderName("llm", cfg.LLM.Extract.Name)
	validateProviderName("llm", cfg.LLM.Research.Name)
	if cfg.LLM.Extract.Name == "" {
		slog.Warn("llm.extract is not configured; the analysis pipeline will be unavailable")
	}
	if cfg.LLM.Research.Name == "" && cfg.LLM.Extract.Name != "" {
		slog.Warn("llm.research is not configured; deep research will fall back to the extract model")
	}

	// Pipeline
	if cfg.Pipeline.Interval < 0 {
		errs = append(errs, errors.New("pipeline.interval must not be negative"))
	}
	if cfg.Pipeline.RetryBackoff < 0 {
		errs = append(errs, errors.New("pipeline.retry_backoff must not be negative"))
	}
	if cfg.Pipeline.DeepResearchInterval < 0 {
		errs = append(errs, errors.New("pipeline.deep_research_interval must not be negative"))
	}
	if cfg.Pipeline.EmphasisThreshold < 0 || cfg.Pipeline.EmphasisThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.emphasis_threshold %.2f is out of range [0, 1]", cfg.Pipeline.EmphasisThreshold))
	}

	// Database
	if cfg.Database.DSN == "" {
		slog.Warn("database.dsn is empty; using the in-memory store, data will not survive restarts")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
