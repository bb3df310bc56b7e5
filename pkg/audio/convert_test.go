package audio

import (
	"math"
	"testing"
)

func TestResampleLinearInterpolates(t *testing.T) {
	got := ResampleLinear([]float32{0, 1}, 8000, 16000)
	want := []float32{0, 0.5, 1, 1}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResampleLinearIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	got := ResampleLinear(in, 16000, 16000)
	if len(got) != len(in) || got[0] != in[0] || got[2] != in[2] {
		t.Errorf("identity resample changed the samples: %v", got)
	}
}

func TestResampleAveragingAveragesDecimationWindows(t *testing.T) {
	got := ResampleAveraging([]float32{0, 2, 4, 6}, 32000, 16000)
	want := []float32{1, 5}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResampleAveragingNonIntegerRatio(t *testing.T) {
	// 10ms at 44.1kHz must come out as 10ms at 16kHz.
	got := ResampleAveraging(make([]float32, 441), 44100, 16000)
	if len(got) != 160 {
		t.Errorf("got %d samples, want 160", len(got))
	}
}

func TestDownmixMonoAveragesChannels(t *testing.T) {
	got := DownmixMono([]float32{1, 3, 2, 4}, 2)
	want := []float32{2, 3}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}
}
