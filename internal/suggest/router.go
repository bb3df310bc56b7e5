package suggest

import (
	"context"
	"log/slog"
	"time"

	"github.com/Savin-Alex/ai-consul-sub001/internal/observe"
	"github.com/Savin-Alex/ai-consul-sub001/internal/resilience"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/llm"
)

// Liveness gates a local provider behind a reachability and model check.
// [anyllm.OllamaProbe] satisfies it.
type Liveness interface {
	Available(ctx context.Context) bool
	HasModel(ctx context.Context, model string) bool
}

// Router runs the provider failover chain. Providers are tried in
// registration order; each carries its own circuit breaker. Before an
// attempt a provider is skipped when cloud usage is disallowed and the
// provider is not local, when it does not support the requested model, or,
// for local providers, when its liveness probe fails — skips never touch
// the breaker, so a stopped Ollama daemon does not poison its entry.
type Router struct {
	chain      *resilience.Chain[llm.Provider]
	liveness   map[string]Liveness
	local      map[string]bool
	allowCloud bool
	metrics    *observe.Metrics
}

// NewRouter creates an empty router. breaker configures the per-provider
// circuit breakers. When allowCloud is false, every provider not registered
// through [Router.AddLocal] is skipped: transcripts never leave the machine
// through the suggestion path.
func NewRouter(breaker resilience.BreakerConfig, allowCloud bool, metrics *observe.Metrics) *Router {
	return &Router{
		chain:      resilience.NewChain[llm.Provider](breaker),
		liveness:   make(map[string]Liveness),
		local:      make(map[string]bool),
		allowCloud: allowCloud,
		metrics:    metrics,
	}
}

// Add appends a cloud provider to the failover order.
func (r *Router) Add(p llm.Provider) {
	r.chain.Add(p.Name(), p)
}

// AddLocal appends a local provider, optionally gated by a liveness probe.
// Local providers stay eligible when cloud usage is disallowed.
func (r *Router) AddLocal(p llm.Provider, probe Liveness) {
	r.chain.Add(p.Name(), p)
	r.local[p.Name()] = true
	if probe != nil {
		r.liveness[p.Name()] = probe
	}
}

// Len returns the number of registered providers.
func (r *Router) Len() int { return r.chain.Len() }

// Generate runs req through the chain and returns the first successful
// completion. The error wraps [resilience.ErrAllFailed] when every eligible
// provider failed, or [resilience.ErrChainEmpty] when none was eligible.
func (r *Router) Generate(ctx context.Context, req llm.Request) (string, error) {
	skip := func(name string, p llm.Provider) bool {
		if !r.allowCloud && !r.local[name] {
			slog.Debug("cloud provider disallowed by policy", "provider", name)
			return true
		}
		if !p.Supports(req.Model) {
			slog.Debug("provider does not support model", "provider", name, "model", req.Model)
			return true
		}
		if probe, ok := r.liveness[name]; ok {
			if !probe.Available(ctx) {
				slog.Debug("local provider not reachable", "provider", name)
				return true
			}
			if !probe.HasModel(ctx, req.Model) {
				slog.Debug("local provider missing model", "provider", name, "model", req.Model)
				return true
			}
		}
		return false
	}

	return resilience.Run(ctx, r.chain, skip, func(ctx context.Context, p llm.Provider) (string, error) {
		start := time.Now()
		text, err := p.Generate(ctx, req)
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.metrics.RecordProviderAttempt(ctx, p.Name(), status, time.Since(start).Seconds())
		return text, err
	})
}
