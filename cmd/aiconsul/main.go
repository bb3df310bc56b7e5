// Command aiconsul runs the realtime speech pipeline: it reads raw int16 PCM
// from stdin, transcribes finalized utterances through the configured engine
// failover order, and writes transcripts and response suggestions to stdout
// as JSON lines. Telemetry (Prometheus metrics, health endpoints) is served
// on the configured address.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Savin-Alex/ai-consul-sub001/internal/app"
	"github.com/Savin-Alex/ai-consul-sub001/internal/config"
	"github.com/Savin-Alex/ai-consul-sub001/internal/health"
	"github.com/Savin-Alex/ai-consul-sub001/internal/observe"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/audio"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/classifier"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/llm/anyllm"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/retrieval"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("aiconsul exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "config.yaml", "path to the YAML configuration file")
		sourceRate  = flag.Int("source-rate", 48000, "sample rate of the PCM stream on stdin")
		sourceChans = flag.Int("source-channels", 1, "channel count of the PCM stream on stdin")
		docsDir     = flag.String("docs", "", "directory of reference documents to ground suggestions in")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.SlogLevel(),
	})))
	slog.Info("starting aiconsul", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "aiconsul",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	a, err := app.New(ctx, cfg, app.Deps{
		Source:     audio.NewReaderSource(os.Stdin, *sourceRate, *sourceChans),
		Classifier: classifier.NewEnergy(0),
		Metrics:    observe.DefaultMetrics(),
	})
	if err != nil {
		return err
	}

	if *docsDir != "" {
		if err := loadDocuments(ctx, a, *docsDir); err != nil {
			return err
		}
	}

	if cfg.Server.MetricsAddr != "" {
		srv := telemetryServer(cfg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("telemetry listener", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	go writeEvents(ctx, a.Events())

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	slog.Info("session started", "state", a.State())

	<-ctx.Done()
	slog.Info("shutting down")
	if err := a.Stop(); err != nil {
		slog.Warn("graceful stop failed, forcing teardown", "error", err)
		a.EmergencyStop()
	}
	return nil
}

// writeEvents streams pipeline events to stdout, one JSON object per line.
func writeEvents(ctx context.Context, events <-chan app.Event) {
	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := enc.Encode(eventPayload(ev)); err != nil {
				slog.Warn("encode event", "error", err)
			}
		}
	}
}

func eventPayload(ev app.Event) map[string]any {
	switch e := ev.(type) {
	case app.StateChanged:
		return map[string]any{
			"type": "state", "from": e.From, "to": e.To,
			"trigger": e.Trigger, "at": e.At,
		}
	case app.Transcript:
		return map[string]any{"type": "transcript", "text": e.Text, "at": e.At}
	case app.Suggestions:
		return map[string]any{
			"type": "suggestions", "transcript": e.Transcript,
			"items": e.Items, "at": e.At,
		}
	case app.Notice:
		payload := map[string]any{"type": "notice", "message": e.Message, "at": e.At}
		if e.Err != nil {
			payload["error"] = e.Err.Error()
		}
		return payload
	default:
		return map[string]any{"type": "unknown"}
	}
}

// telemetryServer builds the metrics + health listener.
func telemetryServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	health.New(readinessProbes(cfg)...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// readinessProbes covers the configured network dependencies: the local
// whisper server and the Ollama daemon.
func readinessProbes(cfg *config.Config) []health.Probe {
	var probes []health.Probe
	for _, ec := range cfg.Transcription.Engines {
		if ec.Name == "whisper-server" && ec.ServerURL != "" {
			probes = append(probes, health.HTTPProbe("whisper-server", ec.ServerURL))
		}
	}
	for _, pc := range cfg.Suggestion.Providers {
		if pc.Name != "ollama" {
			continue
		}
		url := pc.BaseURL
		if url == "" {
			url = cfg.Suggestion.OllamaURL
		}
		probe := anyllm.NewOllamaProbe(url)
		probes = append(probes, health.Probe{
			Name: "ollama",
			Check: func(ctx context.Context) error {
				if !probe.Available(ctx) {
					return fmt.Errorf("ollama daemon unreachable at %s", url)
				}
				return nil
			},
		})
	}
	return probes
}

// loadDocuments ingests every regular file in dir as one reference document.
func loadDocuments(ctx context.Context, a *app.App, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read docs dir: %w", err)
	}
	var docs []retrieval.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read document %q: %w", path, err)
		}
		docs = append(docs, retrieval.Document{Source: entry.Name(), Text: string(body)})
	}
	if len(docs) == 0 {
		return nil
	}
	if err := a.LoadDocuments(ctx, docs); err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	slog.Info("loaded reference documents", "count", len(docs))
	return nil
}
