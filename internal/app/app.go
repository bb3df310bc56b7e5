// Package app wires the speech pipeline end to end: device state machine,
// frame producer, voice activity segmentation, utterance buffering,
// transcription failover, and suggestion generation. It exposes session
// commands (Start, Pause, Resume, Stop, EmergencyStop) and a bounded event
// stream for the consumer.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Savin-Alex/ai-consul-sub001/internal/capture"
	"github.com/Savin-Alex/ai-consul-sub001/internal/config"
	"github.com/Savin-Alex/ai-consul-sub001/internal/device"
	"github.com/Savin-Alex/ai-consul-sub001/internal/observe"
	"github.com/Savin-Alex/ai-consul-sub001/internal/orchestrate"
	"github.com/Savin-Alex/ai-consul-sub001/internal/resilience"
	"github.com/Savin-Alex/ai-consul-sub001/internal/suggest"
	"github.com/Savin-Alex/ai-consul-sub001/internal/utterance"
	"github.com/Savin-Alex/ai-consul-sub001/internal/vad"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/audio"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/classifier"
	openaiembed "github.com/Savin-Alex/ai-consul-sub001/pkg/embeddings/openai"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/llm/anyllm"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/retrieval"
	pgcorpus "github.com/Savin-Alex/ai-consul-sub001/pkg/retrieval/postgres"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/stt"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/stt/deepgram"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/stt/whisper"
)

// Deps injects the platform-dependent pieces the app cannot build from
// config alone. Source and Classifier are required. The remaining fields
// override the config-driven construction; tests use them to substitute
// scripted engines and generators.
type Deps struct {
	// Source is the capture device.
	Source audio.Source

	// Classifier backs voice activity detection.
	Classifier classifier.Classifier

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Engines overrides the config-built transcription failover order.
	Engines []orchestrate.Entry

	// Generator overrides the config-built provider router.
	Generator suggest.Generator

	// Corpus overrides the config-built retrieval corpus.
	Corpus retrieval.Corpus
}

// App is the session facade. One App owns one device at a time; commands are
// safe to call concurrently and delegate conflict resolution to the device
// machine's transition lock.
type App struct {
	cfg     *config.Config
	source  audio.Source
	metrics *observe.Metrics

	machine      *device.Machine
	segmenter    *vad.Segmenter
	orchestrator *orchestrate.Orchestrator
	suggester    *suggest.Pipeline
	corpus       retrieval.Corpus

	events        chan Event
	eventsDropped atomic.Uint64

	mu          sync.Mutex
	session     *device.Session
	buffer      *utterance.Buffer
	consumeDone chan struct{}
	active      bool
}

// New builds the pipeline from config plus injected dependencies.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("app: capture source is required")
	}
	if deps.Classifier == nil {
		return nil, fmt.Errorf("app: voice activity classifier is required")
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	policy := policyFrom(cfg.Transcription)

	entries := deps.Engines
	if entries == nil {
		var err error
		entries, err = buildEngines(cfg.Transcription)
		if err != nil {
			return nil, err
		}
	}

	corpus := deps.Corpus
	if corpus == nil {
		var err error
		corpus, err = buildCorpus(ctx, cfg.Retrieval)
		if err != nil {
			return nil, err
		}
	}

	generator := deps.Generator
	if generator == nil {
		router, err := buildRouter(cfg.Suggestion, policy.AllowCloud, metrics)
		if err != nil {
			return nil, err
		}
		generator = router
	}

	a := &App{
		cfg:     cfg,
		source:  deps.Source,
		metrics: metrics,
		corpus:  corpus,
		events:  make(chan Event, eventQueueDepth),
	}

	a.machine = device.NewMachine(
		device.Config{WatchdogTimeout: cfg.Device.WatchdogTimeout},
		device.WithObserver(func(tr device.Transition) {
			a.emit(StateChanged{Transition: tr})
		}),
	)
	a.segmenter = vad.New(vad.Config{
		EnergyThreshold:     cfg.VAD.EnergyThreshold,
		ConfidenceThreshold: cfg.VAD.ConfidenceThreshold,
		MinSilence:          cfg.VAD.MinSilence,
		DebounceFrames:      cfg.VAD.DebounceFrames,
	}, deps.Classifier, metrics)
	a.orchestrator = orchestrate.New(policy, entries, metrics)
	a.suggester = suggest.New(suggest.Config{
		Model:        cfg.Suggestion.Model,
		Mode:         cfg.Suggestion.Mode,
		Tone:         cfg.Suggestion.Tone,
		CustomPrompt: cfg.Suggestion.CustomPrompt,
		Temperature:  cfg.Suggestion.Temperature,
		MaxTokens:    cfg.Suggestion.MaxTokens,
		TopK:         cfg.Retrieval.TopK,
		History: suggest.HistoryConfig{
			KeepRecent:       cfg.Suggestion.History.KeepRecent,
			CompactThreshold: cfg.Suggestion.History.CompactThreshold,
			CompactInterval:  cfg.Suggestion.History.CompactInterval,
			CharBudget:       cfg.Suggestion.History.CharBudget,
		},
	}, generator, corpus)

	return a, nil
}

// Events returns the outbound event stream. A lagging reader loses events
// rather than stalling the pipeline; see [App.EventsDropped].
func (a *App) Events() <-chan Event { return a.events }

// EventsDropped returns how many events were discarded because the queue was
// full.
func (a *App) EventsDropped() uint64 { return a.eventsDropped.Load() }

// State returns the device machine's current state.
func (a *App) State() device.State { return a.machine.State() }

// LoadDocuments ingests reference material into the retrieval corpus.
func (a *App) LoadDocuments(ctx context.Context, docs []retrieval.Document) error {
	return a.corpus.LoadDocuments(ctx, docs)
}

// Start brings up a capture session and launches the consuming loop. ctx
// bounds device bring-up only; the pipeline runs until Stop.
func (a *App) Start(ctx context.Context) error {
	producer, err := capture.New(capture.Config{
		SourceRate:    a.source.SampleRate(),
		TargetRate:    a.cfg.Capture.TargetSampleRate,
		FrameDuration: a.cfg.Capture.FrameDuration,
		MaxBuffer:     a.cfg.Capture.MaxBuffer,
	}, a.metrics)
	if err != nil {
		return err
	}

	buffer := utterance.New(utterance.Config{
		SampleRate:  a.cfg.Capture.TargetSampleRate,
		MaxDuration: a.cfg.Utterance.MaxDuration,
	}, a.transcribe, a.metrics)

	var opus *audio.OpusNode
	if a.cfg.Capture.Encoding == config.EncodingOpus {
		opus, err = audio.NewOpusNode(a.source.SampleRate(), a.source.Channels())
		if err != nil {
			producer.Close()
			return err
		}
	}

	session := device.NewSession(a.source, opus, producer)
	if err := a.machine.Start(ctx, session); err != nil {
		// Stage failures already tore the session down via the machine's
		// error path; a rejected transition leaves the producer orphaned.
		producer.Close()
		return err
	}

	done := make(chan struct{})
	a.mu.Lock()
	a.session = session
	a.buffer = buffer
	a.consumeDone = done
	a.active = true
	a.mu.Unlock()

	if a.metrics != nil && a.metrics.ActiveSessions != nil {
		a.metrics.ActiveSessions.Add(ctx, 1)
	}
	go a.consume(producer, buffer, done)
	return nil
}

// PushOpus feeds one compressed capture packet into the pipeline. Only valid
// while a session started with opus encoding is active; packets arriving
// while paused are discarded at the capture gate.
func (a *App) PushOpus(packet []byte) error {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()
	if session == nil {
		return errors.New("app: no active session")
	}
	return session.PushOpus(packet)
}

// Pause suspends frame flow without releasing the device.
func (a *App) Pause() error { return a.machine.Pause() }

// Resume restarts frame flow after a pause.
func (a *App) Resume() error { return a.machine.Resume() }

// Stop flushes residue, tears the session down, and dispatches any pending
// speech as a final utterance. An in-flight transcription completes and its
// events still arrive.
func (a *App) Stop() error {
	a.mu.Lock()
	buffer, done := a.buffer, a.consumeDone
	a.mu.Unlock()

	if err := a.machine.Stop(); err != nil {
		return err
	}
	if done != nil {
		<-done
	}
	if buffer != nil {
		// Trailing speech never got its pause boundary; close it out, then
		// block any further scheduling on this session's buffer.
		buffer.Observe(context.Background(), audio.Frame{}, false, true)
		buffer.Discard()
	}
	a.deactivate()
	return nil
}

// EmergencyStop abandons the session unconditionally: every resource class is
// torn down best-effort and accumulated speech is discarded.
func (a *App) EmergencyStop() {
	a.mu.Lock()
	buffer, done := a.buffer, a.consumeDone
	a.mu.Unlock()

	a.machine.EmergencyStop()
	if done != nil {
		<-done
	}
	if buffer != nil {
		buffer.Discard()
	}
	a.deactivate()
}

// consume is the single pipeline loop: frames from the producer flow through
// segmentation into the utterance buffer. It exits when the producer closes
// its frame channel.
func (a *App) consume(producer *capture.Producer, buffer *utterance.Buffer, done chan struct{}) {
	defer close(done)
	ctx := context.Background()

	for {
		select {
		case frame, ok := <-producer.Frames():
			if !ok {
				return
			}
			res := a.segmenter.Process(ctx, frame)
			buffer.Observe(ctx, frame, res.SpeechActive, res.PauseBoundary)

		case err := <-producer.Errors():
			a.emit(Notice{Message: "capture error", Err: err, At: time.Now()})
		}
	}
}

// transcribe is the utterance buffer's sink: one complete utterance in,
// transcript and suggestion events out. Each utterance gets a correlation id
// so the transcribe and suggest spans (and their logs) line up.
func (a *App) transcribe(ctx context.Context, samples []float32, sampleRate int) {
	ctx = observe.WithCorrelationID(ctx, observe.NewCorrelationID())

	ctx, span := observe.StartSpan(ctx, "transcribe")
	text, err := a.orchestrator.Transcribe(ctx, samples, sampleRate)
	observe.EndSpan(span, err)
	if err != nil {
		observe.Logger(ctx).Warn("transcription failed", "error", err)
		a.emit(Notice{Message: "transcription failed", Err: err, At: time.Now()})
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	a.emit(Transcript{Text: text, At: time.Now()})

	ctx, span = observe.StartSpan(ctx, "suggest")
	items, err := a.suggester.OnTranscript(ctx, text)
	observe.EndSpan(span, err)
	if err != nil {
		observe.Logger(ctx).Warn("suggestion generation failed", "error", err)
		a.emit(Notice{Message: "suggestion generation failed", Err: err, At: time.Now()})
		return
	}
	a.emit(Suggestions{Transcript: text, Items: items, At: time.Now()})
}

func (a *App) deactivate() {
	a.mu.Lock()
	wasActive := a.active
	a.active = false
	a.session = nil
	a.buffer = nil
	a.consumeDone = nil
	a.mu.Unlock()

	if wasActive && a.metrics != nil && a.metrics.ActiveSessions != nil {
		a.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}

func (a *App) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
		a.eventsDropped.Add(1)
		slog.Debug("event queue full, dropping event")
	}
}

// buildEngines constructs the transcription failover order from config.
func buildEngines(cfg config.TranscriptionConfig) ([]orchestrate.Entry, error) {
	entries := make([]orchestrate.Entry, 0, len(cfg.Engines))
	for _, ec := range cfg.Engines {
		var (
			eng stt.Engine
			err error
		)
		switch ec.Name {
		case "whisper-native":
			eng, err = whisper.NewNative(ec.ModelPath, whisper.WithNativeLanguage(ec.Language))
		case "whisper-server":
			eng, err = whisper.NewServer(ec.ServerURL, whisper.WithServerLanguage(ec.Language))
		case "deepgram":
			opts := []deepgram.Option{deepgram.WithLanguage(ec.Language)}
			if ec.Model != "" {
				opts = append(opts, deepgram.WithModel(ec.Model))
			}
			eng, err = deepgram.New(os.Getenv(ec.APIKeyEnv), opts...)
		default:
			err = fmt.Errorf("unknown engine %q", ec.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("app: build engine %q: %w", ec.Name, err)
		}
		entries = append(entries, orchestrate.Entry{Engine: eng, CostPerMinute: ec.CostPerMinute})
	}
	return entries, nil
}

// policyFrom maps the configured transcription mode onto class allow flags.
func policyFrom(cfg config.TranscriptionConfig) orchestrate.Policy {
	p := orchestrate.Policy{
		LocalTimeout: cfg.LocalTimeout,
		CloudTimeout: cfg.CloudTimeout,
		CostLimit:    cfg.CostLimit,
	}
	switch cfg.Mode {
	case config.ModeLocalOnly:
		p.AllowLocal = true
	case config.ModeCloudOnly:
		p.AllowCloud = true
	default:
		p.AllowLocal = true
		p.AllowCloud = true
	}
	return p
}

// buildRouter constructs the provider failover chain from config. Ollama
// entries are gated behind a liveness probe so an absent daemon is skipped
// without tripping its breaker; when allowCloud is false only local backends
// stay eligible.
func buildRouter(cfg config.SuggestionConfig, allowCloud bool, metrics *observe.Metrics) (*suggest.Router, error) {
	router := suggest.NewRouter(resilience.BreakerConfig{
		TripAfter: 3,
		Cooldown:  30 * time.Second,
	}, allowCloud, metrics)

	for _, pc := range cfg.Providers {
		var opts []anyllmlib.Option
		if pc.APIKeyEnv != "" {
			if key := os.Getenv(pc.APIKeyEnv); key != "" {
				opts = append(opts, anyllmlib.WithAPIKey(key))
			}
		}
		if pc.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(pc.BaseURL))
		}

		p, err := anyllm.New(pc.Name, opts...)
		if err != nil {
			return nil, fmt.Errorf("app: build provider %q: %w", pc.Name, err)
		}
		switch pc.Name {
		case "ollama":
			url := pc.BaseURL
			if url == "" {
				url = cfg.OllamaURL
			}
			router.AddLocal(p, anyllm.NewOllamaProbe(url))
		case "llamacpp", "llamafile":
			// Local servers without a model-listing API; no probe.
			router.AddLocal(p, nil)
		default:
			router.Add(p)
		}
	}
	return router, nil
}

// buildCorpus selects the retrieval backend: pgvector when a DSN is
// configured, the in-memory keyword corpus otherwise.
func buildCorpus(ctx context.Context, cfg config.RetrievalConfig) (retrieval.Corpus, error) {
	if cfg.PostgresDSN == "" {
		return retrieval.NewKeywordCorpus(), nil
	}
	embedder, err := openaiembed.New(os.Getenv(cfg.EmbeddingsAPIKeyEnv), cfg.EmbeddingsModel)
	if err != nil {
		return nil, fmt.Errorf("app: build embeddings provider: %w", err)
	}
	store, err := pgcorpus.New(ctx, cfg.PostgresDSN, embedder)
	if err != nil {
		return nil, fmt.Errorf("app: connect retrieval store: %w", err)
	}
	return store, nil
}
