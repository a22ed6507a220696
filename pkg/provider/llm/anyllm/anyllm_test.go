package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/lingosync/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "m"); err == nil {
		t.Error("expected error for empty backend")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("nonexistent", "m"); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestNew_LocalBackendsNeedNoKey(t *testing.T) {
	t.Parallel()

	for _, b := range []string{"ollama", "llamacpp", "llamafile"} {
		p, err := New(b, "llama3.2")
		if err != nil {
			t.Errorf("New(%q): %v", b, err)
			continue
		}
		if p.name != b {
			t.Errorf("name = %q, want %q", p.name, b)
		}
	}
}

func TestNew_OpenAIWithKey(t *testing.T) {
	t.Parallel()

	p, err := New("OpenAI", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.Capabilities().MaxOutputTokens; got != 16_384 {
		t.Errorf("MaxOutputTokens = %d, want 16384", got)
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "llama3.2"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "translate",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
		Temperature:  0.1,
		MaxTokens:    100,
	})
	if params.Model != "llama3.2" {
		t.Errorf("Model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem || params.Messages[0].ContentString() != "translate" {
		t.Errorf("system message = %+v", params.Messages[0])
	}
	if params.Messages[1].ContentString() != "Hello" {
		t.Errorf("user content = %q", params.Messages[1].ContentString())
	}
	if params.Temperature == nil || *params.Temperature != 0.1 {
		t.Errorf("Temperature = %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 100 {
		t.Errorf("MaxTokens = %v", params.MaxTokens)
	}

	bare := p.buildParams(llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}}})
	if bare.Temperature != nil || bare.MaxTokens != nil || len(bare.Messages) != 1 {
		t.Errorf("bare params = %+v", bare)
	}
}
