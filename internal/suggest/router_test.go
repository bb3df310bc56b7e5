package suggest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Savin-Alex/ai-consul-sub001/internal/resilience"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/llm"
	llmmock "github.com/Savin-Alex/ai-consul-sub001/pkg/llm/mock"
)

// fakeProbe is a scripted Liveness.
type fakeProbe struct {
	available bool
	hasModel  bool
}

func (f *fakeProbe) Available(context.Context) bool        { return f.available }
func (f *fakeProbe) HasModel(context.Context, string) bool { return f.hasModel }

func testBreaker() resilience.BreakerConfig {
	return resilience.BreakerConfig{TripAfter: 3, Cooldown: time.Minute}
}

func TestRouterPrefersLiveLocalProvider(t *testing.T) {
	local := &llmmock.Provider{ProviderName: "ollama", Responses: []string{"local answer"}}
	cloud := &llmmock.Provider{ProviderName: "openai", Responses: []string{"cloud answer"}}

	r := NewRouter(testBreaker(), true, nil)
	r.AddLocal(local, &fakeProbe{available: true, hasModel: true})
	r.Add(cloud)

	got, err := r.Generate(context.Background(), llm.Request{Model: "llama3.2", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "local answer" {
		t.Errorf("got %q, want the local provider's answer", got)
	}
	if len(cloud.Calls()) != 0 {
		t.Error("cloud provider invoked although local succeeded")
	}
}

func TestRouterSkipsDeadLocalWithoutBurningBreaker(t *testing.T) {
	local := &llmmock.Provider{ProviderName: "ollama", Responses: []string{"never"}}
	cloud := &llmmock.Provider{ProviderName: "openai", Responses: []string{"cloud answer"}}

	r := NewRouter(testBreaker(), true, nil)
	r.AddLocal(local, &fakeProbe{available: false})
	r.Add(cloud)

	for i := 0; i < 5; i++ {
		got, err := r.Generate(context.Background(), llm.Request{Model: "gpt-4o-mini", Prompt: "hi"})
		if err != nil {
			t.Fatalf("Generate %d: %v", i, err)
		}
		if got != "cloud answer" {
			t.Errorf("got %q, want cloud answer", got)
		}
	}
	if len(local.Calls()) != 0 {
		t.Error("dead local provider was invoked")
	}
}

func TestRouterSkipsProvidersWithoutModelSupport(t *testing.T) {
	anthropic := &llmmock.Provider{ProviderName: "anthropic", SupportedPrefix: "claude-", Responses: []string{"no"}}
	openai := &llmmock.Provider{ProviderName: "openai", SupportedPrefix: "gpt-", Responses: []string{"yes"}}

	r := NewRouter(testBreaker(), true, nil)
	r.Add(anthropic)
	r.Add(openai)

	got, err := r.Generate(context.Background(), llm.Request{Model: "gpt-4o-mini", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "yes" {
		t.Errorf("got %q, want the supporting provider's answer", got)
	}
	if len(anthropic.Calls()) != 0 {
		t.Error("non-supporting provider was invoked")
	}
}

func TestRouterFailsOverOnError(t *testing.T) {
	broken := &llmmock.Provider{ProviderName: "openai", Err: errors.New("rate limited")}
	backup := &llmmock.Provider{ProviderName: "gemini", Responses: []string{"backup answer"}}

	r := NewRouter(testBreaker(), true, nil)
	r.Add(broken)
	r.Add(backup)

	got, err := r.Generate(context.Background(), llm.Request{Model: "any", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "backup answer" {
		t.Errorf("got %q, want the backup provider's answer", got)
	}
}

func TestRouterBreakerCutsOffRepeatOffender(t *testing.T) {
	broken := &llmmock.Provider{ProviderName: "openai", Err: errors.New("down")}
	backup := &llmmock.Provider{ProviderName: "gemini", Responses: []string{"ok"}}

	r := NewRouter(resilience.BreakerConfig{TripAfter: 2, Cooldown: time.Hour}, true, nil)
	r.Add(broken)
	r.Add(backup)

	ctx := context.Background()
	req := llm.Request{Model: "any", Prompt: "hi"}
	for i := 0; i < 5; i++ {
		if _, err := r.Generate(ctx, req); err != nil {
			t.Fatalf("Generate %d: %v", i, err)
		}
	}
	// Two failures trip the breaker; the remaining three rounds skip it.
	if got := len(broken.Calls()); got != 2 {
		t.Errorf("broken provider called %d times, want 2", got)
	}
}

func TestRouterCloudDisallowedStillServesLocal(t *testing.T) {
	local := &llmmock.Provider{ProviderName: "ollama", Responses: []string{"local answer"}}
	cloud := &llmmock.Provider{ProviderName: "openai", Responses: []string{"cloud answer"}}

	r := NewRouter(testBreaker(), false, nil)
	r.AddLocal(local, &fakeProbe{available: true, hasModel: true})
	r.Add(cloud)

	got, err := r.Generate(context.Background(), llm.Request{Model: "llama3.2", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "local answer" {
		t.Errorf("got %q, want the local provider's answer", got)
	}
	if len(cloud.Calls()) != 0 {
		t.Error("cloud provider invoked although cloud usage is disallowed")
	}
}

func TestRouterCloudDisallowedNeverFailsOverToCloud(t *testing.T) {
	local := &llmmock.Provider{ProviderName: "ollama", Err: errors.New("model crashed")}
	cloud := &llmmock.Provider{ProviderName: "openai", Responses: []string{"cloud answer"}}

	r := NewRouter(testBreaker(), false, nil)
	r.AddLocal(local, &fakeProbe{available: true, hasModel: true})
	r.Add(cloud)

	_, err := r.Generate(context.Background(), llm.Request{Model: "llama3.2", Prompt: "hi"})
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("got %v, want ErrAllFailed", err)
	}
	if len(cloud.Calls()) != 0 {
		t.Error("transcript sent to a cloud provider despite the policy")
	}
}

func TestRouterCloudDisallowedWithOnlyCloudProviders(t *testing.T) {
	cloud := &llmmock.Provider{ProviderName: "openai", Responses: []string{"never"}}

	r := NewRouter(testBreaker(), false, nil)
	r.Add(cloud)

	_, err := r.Generate(context.Background(), llm.Request{Model: "gpt-4o-mini", Prompt: "hi"})
	if !errors.Is(err, resilience.ErrChainEmpty) {
		t.Errorf("got %v, want ErrChainEmpty", err)
	}
	if len(cloud.Calls()) != 0 {
		t.Error("cloud provider invoked although cloud usage is disallowed")
	}
}

func TestRouterExhaustionWrapsAllFailed(t *testing.T) {
	a := &llmmock.Provider{ProviderName: "openai", Err: errors.New("down")}
	b := &llmmock.Provider{ProviderName: "gemini", Err: errors.New("also down")}

	r := NewRouter(testBreaker(), true, nil)
	r.Add(a)
	r.Add(b)

	_, err := r.Generate(context.Background(), llm.Request{Model: "any", Prompt: "hi"})
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("got %v, want ErrAllFailed", err)
	}
}

func TestRouterEmptyChainReturnsChainEmpty(t *testing.T) {
	r := NewRouter(testBreaker(), true, nil)
	_, err := r.Generate(context.Background(), llm.Request{Model: "any", Prompt: "hi"})
	if !errors.Is(err, resilience.ErrChainEmpty) {
		t.Errorf("got %v, want ErrChainEmpty", err)
	}
}
