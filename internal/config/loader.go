package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidEngineNames lists the transcription engines the registry can build.
var ValidEngineNames = []string{"whisper-native", "whisper-server", "deepgram"}

// ValidProviderNames lists the LLM provider backends the registry can build.
var ValidProviderNames = []string{
	"openai", "anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
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

// LoadFromReader decodes a YAML config from r with strict field checking,
// applies defaults, and validates. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Device.WatchdogTimeout <= 0 {
		cfg.Device.WatchdogTimeout = 10 * time.Second
	}
	if cfg.Capture.Encoding == "" {
		cfg.Capture.Encoding = EncodingPCM
	}
	if cfg.Capture.TargetSampleRate <= 0 {
		cfg.Capture.TargetSampleRate = 16000
	}
	if cfg.Capture.FrameDuration <= 0 {
		cfg.Capture.FrameDuration = 100 * time.Millisecond
	}
	if cfg.Capture.MaxBuffer <= 0 {
		cfg.Capture.MaxBuffer = 5 * time.Second
	}
	if cfg.VAD.EnergyThreshold <= 0 {
		cfg.VAD.EnergyThreshold = 0.01
	}
	if cfg.VAD.ConfidenceThreshold <= 0 {
		cfg.VAD.ConfidenceThreshold = 0.5
	}
	if cfg.VAD.MinSilence <= 0 {
		cfg.VAD.MinSilence = 1200 * time.Millisecond
	}
	if cfg.VAD.DebounceFrames <= 0 {
		cfg.VAD.DebounceFrames = 10
	}
	if cfg.Utterance.MaxDuration <= 0 {
		cfg.Utterance.MaxDuration = 5500 * time.Millisecond
	}
	if cfg.Transcription.Mode == "" {
		cfg.Transcription.Mode = ModeAuto
	}
	if cfg.Transcription.LocalTimeout <= 0 {
		cfg.Transcription.LocalTimeout = 10 * time.Second
	}
	if cfg.Transcription.CloudTimeout <= 0 {
		cfg.Transcription.CloudTimeout = 15 * time.Second
	}
	for i := range cfg.Transcription.Engines {
		if cfg.Transcription.Engines[i].Language == "" {
			cfg.Transcription.Engines[i].Language = "en"
		}
	}
	if cfg.Suggestion.Mode == "" {
		cfg.Suggestion.Mode = SuggestMeeting
	}
	if cfg.Suggestion.Temperature <= 0 {
		cfg.Suggestion.Temperature = 0.7
	}
	if cfg.Suggestion.MaxTokens <= 0 {
		cfg.Suggestion.MaxTokens = 300
	}
	if cfg.Suggestion.OllamaURL == "" {
		cfg.Suggestion.OllamaURL = "http://localhost:11434"
	}
	h := &cfg.Suggestion.History
	if h.KeepRecent <= 0 {
		h.KeepRecent = 5
	}
	if h.CompactThreshold <= 0 {
		h.CompactThreshold = 10
	}
	if h.CompactInterval <= 0 {
		h.CompactInterval = 2 * time.Minute
	}
	if h.CharBudget <= 0 {
		h.CharBudget = 4000
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 3
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Transcription.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("transcription.mode %q is invalid; valid values: auto, local_only, cloud_only", cfg.Transcription.Mode))
	}
	if !cfg.Suggestion.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("suggestion.mode %q is invalid; valid values: interview, meeting, sales, custom", cfg.Suggestion.Mode))
	}
	if cfg.Suggestion.Mode == SuggestCustom && cfg.Suggestion.CustomPrompt == "" {
		errs = append(errs, errors.New("suggestion.custom_prompt is required when suggestion.mode is custom"))
	}

	if e := cfg.Capture.Encoding; e != EncodingPCM && e != EncodingOpus {
		errs = append(errs, fmt.Errorf("capture.encoding %q is invalid; valid values: pcm, opus", e))
	}
	if d := cfg.Capture.FrameDuration; d < 20*time.Millisecond || d > 500*time.Millisecond {
		errs = append(errs, fmt.Errorf("capture.frame_duration %v is out of range [20ms, 500ms]", d))
	}
	if cfg.Utterance.MaxDuration < cfg.Capture.FrameDuration {
		errs = append(errs, fmt.Errorf("utterance.max_duration %v is shorter than one frame (%v)", cfg.Utterance.MaxDuration, cfg.Capture.FrameDuration))
	}

	for i, eng := range cfg.Transcription.Engines {
		prefix := fmt.Sprintf("transcription.engines[%d]", i)
		if eng.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if !slices.Contains(ValidEngineNames, eng.Name) {
			slog.Warn("unrecognised transcription engine name", "engine", eng.Name)
		}
		switch eng.Name {
		case "whisper-native":
			if eng.ModelPath == "" {
				errs = append(errs, fmt.Errorf("%s.model_path is required for whisper-native", prefix))
			}
		case "whisper-server":
			if eng.ServerURL == "" {
				errs = append(errs, fmt.Errorf("%s.server_url is required for whisper-server", prefix))
			}
		case "deepgram":
			if eng.APIKeyEnv == "" {
				errs = append(errs, fmt.Errorf("%s.api_key_env is required for deepgram", prefix))
			}
		}
		if eng.CostPerMinute < 0 {
			errs = append(errs, fmt.Errorf("%s.cost_per_minute must not be negative", prefix))
		}
	}
	if cfg.Transcription.CostLimit < 0 {
		errs = append(errs, errors.New("transcription.cost_limit must not be negative"))
	}

	for i, p := range cfg.Suggestion.Providers {
		prefix := fmt.Sprintf("suggestion.providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if !slices.Contains(ValidProviderNames, p.Name) {
			slog.Warn("unrecognised suggestion provider name", "provider", p.Name)
		}
	}
	if len(cfg.Suggestion.Providers) > 0 && cfg.Suggestion.Model == "" {
		errs = append(errs, errors.New("suggestion.model is required when providers are configured"))
	}

	if cfg.Retrieval.PostgresDSN != "" && cfg.Retrieval.EmbeddingsAPIKeyEnv == "" {
		slog.Warn("retrieval.postgres_dsn is set without embeddings_api_key_env; semantic retrieval will fail to start")
	}

	return errors.Join(errs...)
}

// SlogLevel converts a LogLevel to its slog equivalent.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
