package audio

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"
)

// collectChunks runs a ReaderSource over pcm and returns everything pushed.
func collectChunks(t *testing.T, src *ReaderSource) [][]float32 {
	t.Helper()

	var (
		mu     sync.Mutex
		chunks [][]float32
	)
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	err := src.Start(func(chunk []float32) {
		owned := make([]float32, len(chunk))
		copy(owned, chunk)
		mu.Lock()
		chunks = append(chunks, owned)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The read loop ends on EOF; poll until it settles.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(chunks)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		settled := len(chunks) == n
		mu.Unlock()
		if settled && n > 0 {
			break
		}
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([][]float32, len(chunks))
	copy(out, chunks)
	return out
}

func TestReaderSourceDeliversFixedChunks(t *testing.T) {
	// 50ms of 16kHz mono int16: 800 samples → two full 20ms chunks (320
	// samples each) plus a 160-sample tail.
	pcm := Float32ToInt16(make([]float32, 800))
	src := NewReaderSource(bytes.NewReader(pcm), 16000, 1)

	chunks := collectChunks(t, src)
	if len(chunks) != 3 {
		t.Fatalf("delivered %d chunks, want 3", len(chunks))
	}
	if len(chunks[0]) != 320 || len(chunks[1]) != 320 {
		t.Errorf("full chunks have %d and %d samples, want 320", len(chunks[0]), len(chunks[1]))
	}
	if len(chunks[2]) != 160 {
		t.Errorf("tail chunk has %d samples, want 160", len(chunks[2]))
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReaderSourceRoundTripsSamples(t *testing.T) {
	want := []float32{0, 0.25, -0.25, 0.5}
	padded := make([]float32, 320)
	copy(padded, want)
	src := NewReaderSource(bytes.NewReader(Float32ToInt16(padded)), 16000, 1)

	chunks := collectChunks(t, src)
	if len(chunks) != 1 {
		t.Fatalf("delivered %d chunks, want 1", len(chunks))
	}
	for i, w := range want {
		got := chunks[0][i]
		if diff := got - w; diff > 0.001 || diff < -0.001 {
			t.Errorf("sample %d = %v, want ~%v", i, got, w)
		}
	}
}

func TestReaderSourceLifecycle(t *testing.T) {
	src := NewReaderSource(bytes.NewReader(nil), 16000, 1)
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := src.Start(func([]float32) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := src.Start(func([]float32) {}); err == nil {
		t.Error("second Start should fail while running")
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v, want nil", err)
	}
	if err := src.Open(context.Background()); err == nil {
		t.Error("Open after Close should fail")
	}
}

func TestReaderSourceRejectsBadRate(t *testing.T) {
	src := NewReaderSource(bytes.NewReader(nil), 0, 1)
	if err := src.Open(context.Background()); err == nil {
		t.Error("expected an error for a zero sample rate")
	}
}
