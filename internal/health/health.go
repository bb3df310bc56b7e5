// Package health provides HTTP liveness and readiness handlers for the
// pipeline's telemetry listener.
//
//   - /healthz — liveness; always 200 while the process serves HTTP.
//   - /readyz  — readiness; 200 only when every registered [Probe] passes.
//     Probes cover the configured transcription backends (whisper-server
//     reachability, Ollama daemon liveness).
//
// Responses are JSON: a top-level "status" ("ok" or "fail") plus a "checks"
// map with each probe's outcome and duration.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Probe is a named readiness check. Check returns nil when the dependency is
// healthy; it must respect context cancellation.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// checkResult is one probe's outcome in the JSON body.
type checkResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

type response struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The probe list is fixed at
// construction; the handler is safe for concurrent use.
type Handler struct {
	probes []Probe
}

// New creates a Handler evaluating the given probes, in order, per /readyz
// request.
func New(probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{probes: p}
}

// Healthz always reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz runs every probe under a [probeTimeout] deadline and reports 503
// when any fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]checkResult, len(h.probes))
	status := http.StatusOK
	overall := "ok"

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		start := time.Now()
		err := p.Check(ctx)
		elapsed := time.Since(start).Round(time.Millisecond)
		cancel()

		res := checkResult{Status: "ok", Duration: elapsed.String()}
		if err != nil {
			res.Status = "fail"
			res.Error = err.Error()
			overall = "fail"
			status = http.StatusServiceUnavailable
		}
		checks[p.Name] = res
	}

	writeJSON(w, status, response{Status: overall, Checks: checks})
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// HTTPProbe builds a probe that requires a 2xx response from url.
func HTTPProbe(name, url string) Probe {
	client := &http.Client{Timeout: probeTimeout}
	return Probe{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("unexpected status %s", resp.Status)
			}
			return nil
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
