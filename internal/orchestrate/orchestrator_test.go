package orchestrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Savin-Alex/ai-consul-sub001/pkg/stt"
	sttmock "github.com/Savin-Alex/ai-consul-sub001/pkg/stt/mock"
)

func allowAll() Policy {
	return Policy{
		AllowLocal:   true,
		AllowCloud:   true,
		LocalTimeout: 100 * time.Millisecond,
		CloudTimeout: 100 * time.Millisecond,
	}
}

func entries(engines ...stt.Engine) []Entry {
	out := make([]Entry, len(engines))
	for i, e := range engines {
		out[i] = Entry{Engine: e}
	}
	return out
}

func samples() []float32 { return make([]float32, 16000) }

func TestFailoverStopsAtFirstSuccess(t *testing.T) {
	a := &sttmock.Engine{EngineName: "a", Err: errors.New("a blew up")}
	b := &sttmock.Engine{EngineName: "b", Delay: time.Second, IgnoreCtx: true}
	c := &sttmock.Engine{EngineName: "c", Text: "hello"}
	d := &sttmock.Engine{EngineName: "d", Text: "never"}

	o := New(allowAll(), entries(a, b, c, d), nil)
	got, err := o.Transcribe(context.Background(), samples(), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
	if len(d.Calls()) != 0 {
		t.Errorf("engine after first success was invoked %d times, want 0", len(d.Calls()))
	}
	if len(a.Calls()) != 1 || len(b.Calls()) != 1 || len(c.Calls()) != 1 {
		t.Errorf("call counts a=%d b=%d c=%d, want 1 each", len(a.Calls()), len(b.Calls()), len(c.Calls()))
	}
}

func TestEmptySuccessDoesNotFallThrough(t *testing.T) {
	silent := &sttmock.Engine{EngineName: "silent", Text: ""}
	loud := &sttmock.Engine{EngineName: "loud", Text: "should not be reached"}

	o := New(allowAll(), entries(silent, loud), nil)
	got, err := o.Transcribe(context.Background(), samples(), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty transcript", got)
	}
	if len(loud.Calls()) != 0 {
		t.Error("empty success fell through to the next engine")
	}
}

func TestExhaustionAggregatesAttempts(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")
	a := &sttmock.Engine{EngineName: "a", Err: errA}
	b := &sttmock.Engine{EngineName: "b", Err: errB}

	o := New(allowAll(), entries(a, b), nil)
	_, err := o.Transcribe(context.Background(), samples(), 16000)

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("got %v, want *ExhaustedError", err)
	}
	if len(ex.Attempts) != 2 {
		t.Errorf("recorded %d attempts, want 2", len(ex.Attempts))
	}
	if !errors.Is(err, errB) {
		t.Errorf("exhaustion error should carry the last failure, got %v", err)
	}
}

func TestTimeoutIsAnOrdinaryFailoverCause(t *testing.T) {
	slow := &sttmock.Engine{EngineName: "slow", Delay: time.Second, IgnoreCtx: true, Text: "late"}
	fast := &sttmock.Engine{EngineName: "fast", Text: "on time"}

	o := New(allowAll(), entries(slow, fast), nil)
	start := time.Now()
	got, err := o.Transcribe(context.Background(), samples(), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "on time" {
		t.Errorf("got %q, want %q (late result must not win)", got, "on time")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("failover took %v, should resolve shortly after the 100ms budget", elapsed)
	}
}

func TestPolicyFiltersEnginesByClass(t *testing.T) {
	local := &sttmock.Engine{EngineName: "local", EngineClass: stt.ClassLocal, Text: "local text"}
	cloud := &sttmock.Engine{EngineName: "cloud", EngineClass: stt.ClassCloud, Text: "cloud text"}

	p := allowAll()
	p.AllowLocal = false
	o := New(p, entries(local, cloud), nil)
	got, err := o.Transcribe(context.Background(), samples(), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "cloud text" {
		t.Errorf("got %q, want cloud engine result", got)
	}
	if len(local.Calls()) != 0 {
		t.Error("disallowed local engine was invoked")
	}
}

func TestAllEnginesFilteredReturnsNoEngines(t *testing.T) {
	cloud := &sttmock.Engine{EngineName: "cloud", EngineClass: stt.ClassCloud, Text: "x"}

	p := allowAll()
	p.AllowCloud = false
	o := New(p, entries(cloud), nil)
	_, err := o.Transcribe(context.Background(), samples(), 16000)
	if !errors.Is(err, ErrNoEngines) {
		t.Errorf("got %v, want ErrNoEngines", err)
	}
}

func TestCostCeilingSkipsExpensiveEngine(t *testing.T) {
	paid := &sttmock.Engine{EngineName: "paid", EngineClass: stt.ClassCloud, Text: "paid text"}
	free := &sttmock.Engine{EngineName: "free", Text: "free text"}

	p := allowAll()
	p.CostLimit = 0.001
	o := New(p, []Entry{
		{Engine: paid, CostPerMinute: 1.0}, // one minute of audio costs $1
		{Engine: free},
	}, nil)

	got, err := o.Transcribe(context.Background(), samples(), 16000) // 1s of audio
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "free text" {
		t.Errorf("got %q, want the free engine's result", got)
	}
	if len(paid.Calls()) != 0 {
		t.Error("over-budget engine was invoked")
	}
}

func TestCostAccumulatesAcrossUtterances(t *testing.T) {
	paid := &sttmock.Engine{EngineName: "paid", EngineClass: stt.ClassCloud, Text: "t"}

	p := allowAll()
	p.CostLimit = 0.05
	o := New(p, []Entry{{Engine: paid, CostPerMinute: 1.0}}, nil)

	ctx := context.Background()
	// Each call is 1s ≈ $0.0167. Two fit under $0.05; the third crosses it.
	for i := 0; i < 2; i++ {
		if _, err := o.Transcribe(ctx, samples(), 16000); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	_, err := o.Transcribe(ctx, samples(), 16000)
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("got %v, want *ExhaustedError once the ceiling is hit", err)
	}
	if len(paid.Calls()) != 2 {
		t.Errorf("paid engine called %d times, want 2", len(paid.Calls()))
	}
}

func TestContextCancellationAbortsFailover(t *testing.T) {
	slow := &sttmock.Engine{EngineName: "slow", Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	o := New(allowAll(), entries(slow), nil)
	_, err := o.Transcribe(ctx, samples(), 16000)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
}
