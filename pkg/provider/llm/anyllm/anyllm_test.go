package anyllm

import (
	"testing"

	"github.com/lectern-ai/lectern/pkg/provider/llm"
)

// TestNew_EmptyProviderName ensures constructor rejects an empty provider name.
func TestNew_EmptyProviderName(t *testing.T) {
	_, err := New("", "gemini-2.0-flash")
	if err == nil {
		t.Fatal("expected error for empty provider name")
	}
}

// TestNew_EmptyModel ensures constructor rejects an empty model.
func TestNew_EmptyModel(t *testing.T) {
	_, err := New("gemini", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_UnsupportedProvider ensures unknown backends are rejected.
func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New("bedrock", "some-model")
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

// TestCreateBackend_CaseInsensitive checks that provider names are case-insensitive.
func TestCreateBackend_CaseInsensitive(t *testing.T) {
	if _, err := createBackend("Gemini"); err != nil {
		t.Errorf("expected Gemini to resolve, got %v", err)
	}
	if _, err := createBackend("GROQ"); err != nil {
		t.Errorf("expected GROQ to resolve, got %v", err)
	}
}

// TestBuildParams_SystemPrompt checks that the system prompt becomes the first message.
func TestBuildParams_SystemPrompt(t *testing.T) {
	p := &Provider{model: "gemini-2.0-flash"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You analyse lectures.",
		Messages:     []llm.Message{{Role: "user", Content: "hello"}},
	})

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != "system" {
		t.Errorf("expected first role system, got %q", params.Messages[0].Role)
	}
	if params.Messages[1].ContentString() != "hello" {
		t.Errorf("expected user content preserved, got %q", params.Messages[1].ContentString())
	}
}

// TestBuildParams_ZeroTemperatureOmitted checks zero tunables are not sent.
func TestBuildParams_ZeroTemperatureOmitted(t *testing.T) {
	p := &Provider{model: "gemini-2.0-flash"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if params.Temperature != nil {
		t.Errorf("expected nil temperature, got %v", *params.Temperature)
	}
	if params.MaxTokens != nil {
		t.Errorf("expected nil max tokens, got %v", *params.MaxTokens)
	}
}

// TestBuildParams_TemperatureAndMaxTokens checks pointer mapping of tunables.
func TestBuildParams_TemperatureAndMaxTokens(t *testing.T) {
	p := &Provider{model: "llama-3.1-8b-instant"}
	params := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 256 {
		t.Errorf("expected max tokens 256, got %v", params.MaxTokens)
	}
}

// TestModelCapabilities_Gemini20Flash checks gemini-2.0-flash capabilities.
func TestModelCapabilities_Gemini20Flash(t *testing.T) {
	caps := modelCapabilities("gemini-2.0-flash")
	if caps.ContextWindow != 1_048_576 {
		t.Errorf("expected context window 1048576, got %d", caps.ContextWindow)
	}
	if caps.SupportsSearch {
		t.Error("expected SupportsSearch=false for gemini-2.0-flash")
	}
}

// TestModelCapabilities_Compound checks search-model detection.
func TestModelCapabilities_Compound(t *testing.T) {
	caps := modelCapabilities("groq/compound")
	if !caps.SupportsSearch {
		t.Error("expected SupportsSearch=true for groq/compound")
	}
}

// TestModelCapabilities_UnknownModel checks defaults for unrecognised models.
func TestModelCapabilities_UnknownModel(t *testing.T) {
	caps := modelCapabilities("frontier-model-x")
	if caps.ContextWindow <= 0 || caps.MaxOutputTokens <= 0 {
		t.Errorf("expected positive defaults, got %+v", caps)
	}
}
