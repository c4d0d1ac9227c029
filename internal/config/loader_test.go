package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const fullConfig = `
server:
  addr: ":9090"
  allowed_origins: ["https://app.example.com"]
log:
  level: debug
database:
  dsn: "postgres://localhost:5432/lectern"
stt:
  provider: pulse
  api_key: test-stt-key
  language: de
  encoding: linear16
  sample_rate: 8000
  word_timestamps: false
llm:
  extract:
    provider: gemini
    model: gemini-2.0-flash
    api_key: test-extract-key
  research:
    provider: groq
    model: llama-3.1-8b-instant
    api_key: test-research-key
pipeline:
  interval: 25s
  retry_backoff: 10s
  deep_research_interval: 1m
  emphasis_threshold: 0.75
`

func TestLoadFromReaderFullConfig(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(fullConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("server.addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Log.Level != LogDebug {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Database.DSN != "postgres://localhost:5432/lectern" {
		t.Errorf("database.dsn = %q", cfg.Database.DSN)
	}
	if cfg.STT.Language != "de" || cfg.STT.SampleRate != 8000 {
		t.Errorf("unexpected stt config: %+v", cfg.STT)
	}
	if cfg.STT.WordTimestamps {
		t.Error("stt.word_timestamps should be false")
	}
	if cfg.LLM.Extract.Name != "gemini" || cfg.LLM.Extract.Model != "gemini-2.0-flash" {
		t.Errorf("unexpected llm.extract: %+v", cfg.LLM.Extract)
	}
	if cfg.LLM.Research.Name != "groq" {
		t.Errorf("unexpected llm.research: %+v", cfg.LLM.Research)
	}
	if cfg.Pipeline.Interval.Std() != 25*time.Second {
		t.Errorf("pipeline.interval = %v, want 25s", cfg.Pipeline.Interval.Std())
	}
	if cfg.Pipeline.DeepResearchInterval.Std() != time.Minute {
		t.Errorf("pipeline.deep_research_interval = %v, want 1m", cfg.Pipeline.DeepResearchInterval.Std())
	}
	if cfg.Pipeline.EmphasisThreshold != 0.75 {
		t.Errorf("pipeline.emphasis_threshold = %v, want 0.75", cfg.Pipeline.EmphasisThreshold)
	}
}

func TestLoadFromReaderDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Log.Level != LogInfo {
		t.Errorf("default log level = %q, want info", cfg.Log.Level)
	}
	if cfg.Pipeline.Interval.Std() != 20*time.Second {
		t.Errorf("default pipeline interval = %v, want 20s", cfg.Pipeline.Interval.Std())
	}
	if cfg.Pipeline.RetryBackoff.Std() != 20*time.Second {
		t.Errorf("default retry backoff = %v, want 20s", cfg.Pipeline.RetryBackoff.Std())
	}
	if cfg.Pipeline.DeepResearchInterval.Std() != 30*time.Second {
		t.Errorf("default deep research interval = %v, want 30s", cfg.Pipeline.DeepResearchInterval.Std())
	}
	if cfg.Pipeline.EmphasisThreshold != 0.6 {
		t.Errorf("default emphasis threshold = %v, want 0.6", cfg.Pipeline.EmphasisThreshold)
	}
	if cfg.STT.Provider != "pulse" || cfg.STT.SampleRate != 16000 {
		t.Errorf("unexpected stt defaults: %+v", cfg.STT)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server:\n  listen: \":8080\"\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestLoadFromReaderExpandsEnv(t *testing.T) {
	t.Setenv("TEST_STT_KEY", "secret-from-env")

	cfg, err := LoadFromReader(strings.NewReader("stt:\n  api_key: ${TEST_STT_KEY}\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.STT.APIKey != "secret-from-env" {
		t.Errorf("stt.api_key = %q, want expanded env value", cfg.STT.APIKey)
	}
}

func TestLoadFromReaderEnvOverrides(t *testing.T) {
	t.Setenv(EnvAddr, ":7070")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvDatabaseDSN, "postgres://override/db")

	cfg, err := LoadFromReader(strings.NewReader("server:\n  addr: \":8080\"\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("env override lost: addr = %q", cfg.Server.Addr)
	}
	if cfg.Log.Level != LogWarn {
		t.Errorf("env override lost: log level = %q", cfg.Log.Level)
	}
	if cfg.Database.DSN != "postgres://override/db" {
		t.Errorf("env override lost: dsn = %q", cfg.Database.DSN)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected defaults, got addr %q", cfg.Server.Addr)
	}
}

func TestLoadPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9999\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q, want the value from the file named by %s", cfg.Server.Addr, EnvConfigPath)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"empty addr":            func(c *Config) { c.Server.Addr = "" },
		"bad log level":         func(c *Config) { c.Log.Level = "verbose" },
		"negative sample rate":  func(c *Config) { c.STT.SampleRate = -1 },
		"negative interval":     func(c *Config) { c.Pipeline.Interval = Duration(-time.Second) },
		"threshold above range": func(c *Config) { c.Pipeline.EmphasisThreshold = 1.5 },
		"threshold below range": func(c *Config) { c.Pipeline.EmphasisThreshold = -0.1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Log.Level = "loud"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "server.addr") || !strings.Contains(msg, "log.level") {
		t.Errorf("expected both failures reported, got: %v", msg)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var cfg struct {
		D Duration `yaml:"d"`
	}
	if err := yaml.Unmarshal([]byte("d: 1m30s\n"), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.D.Std() != 90*time.Second {
		t.Errorf("duration = %v, want 1m30s", cfg.D.Std())
	}

	if err := yaml.Unmarshal([]byte("d: soon\n"), &cfg); err == nil {
		t.Error("expected an error for an unparsable duration")
	}
}

func TestLogLevelIsValid(t *testing.T) {
	for _, l := range []LogLevel{LogDebug, LogInfo, LogWarn, LogError} {
		if !l.IsValid() {
			t.Errorf("level %q should be valid", l)
		}
	}
	if LogLevel("trace").IsValid() {
		t.Error("unknown level should be invalid")
	}
}
