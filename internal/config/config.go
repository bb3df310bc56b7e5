// Package config provides the configuration schema and loader for the
// ai-consul speech pipeline.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// TranscriptionMode selects how the orchestrator may route audio.
type TranscriptionMode string

const (
	// ModeAuto tries engines in the configured failover order, local and
	// cloud alike (subject to the allow flags).
	ModeAuto TranscriptionMode = "auto"

	// ModeLocalOnly restricts transcription to engines that keep audio on
	// this machine.
	ModeLocalOnly TranscriptionMode = "local_only"

	// ModeCloudOnly restricts transcription to cloud engines.
	ModeCloudOnly TranscriptionMode = "cloud_only"
)

// IsValid reports whether m is a recognised mode.
func (m TranscriptionMode) IsValid() bool {
	switch m {
	case ModeAuto, ModeLocalOnly, ModeCloudOnly:
		return true
	}
	return false
}

// SuggestionMode selects the conversation-type block injected into the
// suggestion prompt.
type SuggestionMode string

const (
	SuggestInterview SuggestionMode = "interview"
	SuggestMeeting   SuggestionMode = "meeting"
	SuggestSales     SuggestionMode = "sales"
	SuggestCustom    SuggestionMode = "custom"
)

// IsValid reports whether m is a recognised suggestion mode.
func (m SuggestionMode) IsValid() bool {
	switch m {
	case SuggestInterview, SuggestMeeting, SuggestSales, SuggestCustom:
		return true
	}
	return false
}

// Config is the root configuration, typically loaded from YAML via [Load].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Device        DeviceConfig        `yaml:"device"`
	Capture       CaptureConfig       `yaml:"capture"`
	VAD           VADConfig           `yaml:"vad"`
	Utterance     UtteranceConfig     `yaml:"utterance"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Suggestion    SuggestionConfig    `yaml:"suggestion"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
}

// ServerConfig holds logging and telemetry settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the address for the Prometheus scrape and health
	// endpoints (e.g. ":9090"). Empty disables the HTTP listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DeviceConfig tunes the audio device state machine.
type DeviceConfig struct {
	// WatchdogTimeout bounds how long the machine may sit in a transitional
	// state before being forced to error. Default: 10s.
	WatchdogTimeout time.Duration `yaml:"watchdog_timeout"`
}

// Capture encodings.
const (
	// EncodingPCM selects raw float32 chunks from the source callback.
	EncodingPCM = "pcm"

	// EncodingOpus selects compressed Opus packets, decoded ahead of the
	// frame producer. Packets are pushed by the host (network transports).
	EncodingOpus = "opus"
)

// CaptureConfig tunes the frame producer.
type CaptureConfig struct {
	// Encoding selects the capture payload: pcm or opus. Default: pcm.
	Encoding string `yaml:"encoding"`

	// TargetSampleRate is the canonical pipeline rate. Default: 16000.
	TargetSampleRate int `yaml:"target_sample_rate"`

	// FrameDuration is the fixed frame size emitted downstream.
	// Valid range 20ms–500ms. Default: 100ms.
	FrameDuration time.Duration `yaml:"frame_duration"`

	// MaxBuffer caps accumulated un-framed audio before a proactive flush.
	// Default: 5s.
	MaxBuffer time.Duration `yaml:"max_buffer"`
}

// VADConfig tunes the voice activity segmenter.
type VADConfig struct {
	// EnergyThreshold is the minimum peak amplitude for a frame to count as
	// speech. Default: 0.01.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// ConfidenceThreshold is the minimum classifier score. Default: 0.5.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// MinSilence is the silence duration that closes an utterance.
	// Default: 1.2s.
	MinSilence time.Duration `yaml:"min_silence"`

	// DebounceFrames is the consecutive-silent-frame count that closes an
	// utterance. Default: 10.
	DebounceFrames int `yaml:"debounce_frames"`
}

// UtteranceConfig tunes the utterance buffer.
type UtteranceConfig struct {
	// MaxDuration is the hard ceiling after which a flush is forced even
	// without a pause boundary. Default: 5.5s.
	MaxDuration time.Duration `yaml:"max_duration"`
}

// EngineConfig declares one transcription engine in the failover order.
type EngineConfig struct {
	// Name selects the engine: whisper-native, whisper-server, deepgram.
	Name string `yaml:"name"`

	// ModelPath is the ggml model file for whisper-native.
	ModelPath string `yaml:"model_path"`

	// ServerURL is the whisper-server base URL.
	ServerURL string `yaml:"server_url"`

	// APIKeyEnv names the environment variable holding the engine's API
	// key (cloud engines).
	APIKeyEnv string `yaml:"api_key_env"`

	// Model is the cloud model identifier (e.g. "nova-3").
	Model string `yaml:"model"`

	// Language is the BCP-47 recognition language. Default: "en".
	Language string `yaml:"language"`

	// CostPerMinute is the engine's metered cost in USD per audio minute.
	// Zero for free/local engines.
	CostPerMinute float64 `yaml:"cost_per_minute"`
}

// TranscriptionConfig is the transcription policy, frozen per session.
type TranscriptionConfig struct {
	// Mode routes between local and cloud engines. Default: auto.
	Mode TranscriptionMode `yaml:"mode"`

	// Engines is the ordered failover list.
	Engines []EngineConfig `yaml:"engines"`

	// LocalTimeout bounds each local engine attempt. Default: 10s.
	LocalTimeout time.Duration `yaml:"local_timeout"`

	// CloudTimeout bounds each cloud engine attempt. Default: 15s.
	CloudTimeout time.Duration `yaml:"cloud_timeout"`

	// CostLimit is the per-session cloud spend ceiling in USD. Zero means
	// unlimited.
	CostLimit float64 `yaml:"cost_limit"`
}

// ProviderConfig declares one LLM provider in the suggestion failover chain.
type ProviderConfig struct {
	// Name selects the backend: openai, anthropic, gemini, ollama, ...
	Name string `yaml:"name"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// BaseURL overrides the provider endpoint (local servers).
	BaseURL string `yaml:"base_url"`
}

// HistoryConfig tunes conversational context compaction.
type HistoryConfig struct {
	// KeepRecent is how many exchanges survive compaction verbatim.
	// Default: 5.
	KeepRecent int `yaml:"keep_recent"`

	// CompactThreshold is the exchange count above which compaction is
	// considered. Default: 10.
	CompactThreshold int `yaml:"compact_threshold"`

	// CompactInterval is the minimum time between compactions.
	// Default: 2m.
	CompactInterval time.Duration `yaml:"compact_interval"`

	// CharBudget caps the characters of history included in a prompt.
	// Default: 4000.
	CharBudget int `yaml:"char_budget"`
}

// SuggestionConfig tunes the suggestion pipeline.
type SuggestionConfig struct {
	// Model is the model identifier requested from providers.
	Model string `yaml:"model"`

	// Providers is the ordered failover chain. The first entry is tried
	// first; "ollama" entries are probed for liveness before use.
	Providers []ProviderConfig `yaml:"providers"`

	// Mode selects the conversation-type prompt block. Default: meeting.
	Mode SuggestionMode `yaml:"mode"`

	// Tone is a free-form style directive (e.g. "concise and direct").
	Tone string `yaml:"tone"`

	// CustomPrompt replaces the mode block when Mode is "custom".
	CustomPrompt string `yaml:"custom_prompt"`

	// Temperature for generation. Default: 0.7.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the completion. Default: 300.
	MaxTokens int `yaml:"max_tokens"`

	// History tunes context compaction.
	History HistoryConfig `yaml:"history"`

	// OllamaURL is the local daemon address probed before local
	// generation. Default: http://localhost:11434.
	OllamaURL string `yaml:"ollama_url"`
}

// RetrievalConfig tunes the knowledge corpus behind suggestion prompts.
type RetrievalConfig struct {
	// TopK is the number of snippets injected per prompt. Default: 3.
	TopK int `yaml:"top_k"`

	// PostgresDSN enables the pgvector corpus. Empty selects the
	// in-memory keyword corpus.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingsAPIKeyEnv names the environment variable holding the
	// OpenAI key used for embeddings (pgvector corpus only).
	EmbeddingsAPIKeyEnv string `yaml:"embeddings_api_key_env"`

	// EmbeddingsModel overrides the embeddings model.
	EmbeddingsModel string `yaml:"embeddings_model"`
}
