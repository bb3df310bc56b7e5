package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
server:
  log_level: debug
transcription:
  engines:
    - name: whisper-server
      server_url: http://localhost:8080
suggestion:
  model: gpt-4o-mini
  providers:
    - name: openai
      api_key_env: OPENAI_API_KEY
`

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Capture.Encoding != EncodingPCM {
		t.Errorf("Encoding = %q, want pcm", cfg.Capture.Encoding)
	}
	if cfg.Capture.TargetSampleRate != 16000 {
		t.Errorf("TargetSampleRate = %d, want 16000", cfg.Capture.TargetSampleRate)
	}
	if cfg.Capture.FrameDuration != 100*time.Millisecond {
		t.Errorf("FrameDuration = %v, want 100ms", cfg.Capture.FrameDuration)
	}
	if cfg.VAD.MinSilence != 1200*time.Millisecond {
		t.Errorf("MinSilence = %v, want 1.2s", cfg.VAD.MinSilence)
	}
	if cfg.VAD.DebounceFrames != 10 {
		t.Errorf("DebounceFrames = %d, want 10", cfg.VAD.DebounceFrames)
	}
	if cfg.Utterance.MaxDuration != 5500*time.Millisecond {
		t.Errorf("MaxDuration = %v, want 5.5s", cfg.Utterance.MaxDuration)
	}
	if cfg.Transcription.Mode != ModeAuto {
		t.Errorf("Mode = %q, want auto", cfg.Transcription.Mode)
	}
	if cfg.Suggestion.History.KeepRecent != 5 {
		t.Errorf("KeepRecent = %d, want 5", cfg.Suggestion.History.KeepRecent)
	}
	if cfg.Transcription.Engines[0].Language != "en" {
		t.Errorf("engine Language = %q, want en", cfg.Transcription.Engines[0].Language)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("serverr:\n  log_level: info\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestValidateCollectsAllFailures(t *testing.T) {
	bad := `
server:
  log_level: loud
transcription:
  mode: sideways
  engines:
    - name: whisper-native
    - name: deepgram
suggestion:
  mode: meeting
  providers:
    - name: openai
`
	_, err := LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"server.log_level",
		"transcription.mode",
		"model_path is required",
		"api_key_env is required",
		"suggestion.model is required",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateCustomModeRequiresPrompt(t *testing.T) {
	y := `
suggestion:
  mode: custom
`
	_, err := LoadFromReader(strings.NewReader(y))
	if err == nil || !strings.Contains(err.Error(), "custom_prompt") {
		t.Errorf("got %v, want custom_prompt error", err)
	}
}

func TestValidateCaptureEncoding(t *testing.T) {
	y := `
capture:
  encoding: flac
`
	_, err := LoadFromReader(strings.NewReader(y))
	if err == nil || !strings.Contains(err.Error(), "capture.encoding") {
		t.Errorf("got %v, want capture.encoding error", err)
	}
}

func TestValidateFrameDurationRange(t *testing.T) {
	y := `
capture:
  frame_duration: 5ms
`
	_, err := LoadFromReader(strings.NewReader(y))
	if err == nil || !strings.Contains(err.Error(), "frame_duration") {
		t.Errorf("got %v, want frame_duration range error", err)
	}
}
