package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Savin-Alex/ai-consul-sub001/pkg/audio"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/stt"
)

// Compile-time assertion that ServerEngine satisfies stt.Engine.
var _ stt.Engine = (*ServerEngine)(nil)

// ServerEngine implements stt.Engine against a running whisper-server binary,
// which exposes batch inference at POST /inference. Audio is submitted as a
// 16-bit PCM WAV file in a multipart form.
type ServerEngine struct {
	serverURL string
	language  string
	client    *http.Client
}

// ServerOption is a functional option for configuring a ServerEngine.
type ServerOption func(*ServerEngine)

// WithServerLanguage sets the language code sent to the server. Defaults to "en".
func WithServerLanguage(lang string) ServerOption {
	return func(e *ServerEngine) { e.language = lang }
}

// WithServerHTTPClient overrides the HTTP client (e.g. to tune timeouts).
func WithServerHTTPClient(c *http.Client) ServerOption {
	return func(e *ServerEngine) { e.client = c }
}

// NewServer creates an engine talking to the whisper-server at serverURL
// (e.g. "http://localhost:8080").
func NewServer(serverURL string, opts ...ServerOption) (*ServerEngine, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("whisper: serverURL must not be empty")
	}
	e := &ServerEngine{
		serverURL: strings.TrimRight(serverURL, "/"),
		language:  "en",
		client:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Name implements stt.Engine.
func (e *ServerEngine) Name() string { return "whisper-server" }

// Class implements stt.Engine. The server is a local subprocess; audio never
// leaves the machine.
func (e *ServerEngine) Class() stt.Class { return stt.ClassLocal }

// inferenceResponse is the whisper-server /inference response body.
type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// serverSampleRate is the input rate whisper-server expects.
const serverSampleRate = 16000

// Transcribe encodes the utterance as 16 kHz WAV (resampling when the input
// rate differs) and submits it for batch inference.
func (e *ServerEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	if sampleRate != serverSampleRate {
		if sampleRate <= 0 {
			return "", fmt.Errorf("whisper: invalid sample rate %d", sampleRate)
		}
		samples = audio.ResampleAveraging(samples, sampleRate, serverSampleRate)
		sampleRate = serverSampleRate
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if err := writeWAV(fw, samples, sampleRate); err != nil {
		return "", fmt.Errorf("whisper: encode wav: %w", err)
	}
	if err := mw.WriteField("language", e.language); err != nil {
		return "", fmt.Errorf("whisper: write language field: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisper: write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: finalise multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: inference request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("whisper: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var out inferenceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("whisper: decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("whisper: server error: %s", out.Error)
	}
	return strings.TrimSpace(out.Text), nil
}

// writeWAV writes a minimal 16-bit mono PCM WAV file.
func writeWAV(w io.Writer, samples []float32, sampleRate int) error {
	pcm := audio.Float32ToInt16(samples)
	dataLen := uint32(len(pcm))

	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	binary.Write(&hdr, binary.LittleEndian, uint32(36+dataLen))
	hdr.WriteString("WAVE")
	hdr.WriteString("fmt ")
	binary.Write(&hdr, binary.LittleEndian, uint32(16))            // fmt chunk size
	binary.Write(&hdr, binary.LittleEndian, uint16(1))             // PCM
	binary.Write(&hdr, binary.LittleEndian, uint16(1))             // mono
	binary.Write(&hdr, binary.LittleEndian, uint32(sampleRate))    // sample rate
	binary.Write(&hdr, binary.LittleEndian, uint32(sampleRate*2))  // byte rate
	binary.Write(&hdr, binary.LittleEndian, uint16(2))             // block align
	binary.Write(&hdr, binary.LittleEndian, uint16(16))            // bits per sample
	hdr.WriteString("data")
	binary.Write(&hdr, binary.LittleEndian, dataLen)

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
