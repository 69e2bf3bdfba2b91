package resilience

import (
	"errors"
	"testing"
	"time"
)

func newTestBreaker(threshold int, resetTimeout time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitConfig{
		FailureThreshold: threshold,
		ResetTimeout:     resetTimeout,
	})
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func TestCircuit_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second)
	errBoom := errors.New("boom")

	for i := 0; i < 2; i++ {
		cb.Record(errBoom)
		if cb.State() != CircuitClosed {
			t.Fatalf("circuit opened after %d failures, threshold is 3", i+1)
		}
	}
	cb.Record(errBoom)
	if cb.State() != CircuitOpen {
		t.Errorf("expected open after 3 failures, got %v", cb.State())
	}
	if err := cb.Allow(); err == nil {
		t.Error("expected Allow to reject while open")
	}
}

func TestCircuit_SuccessResetsCounter(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second)
	errBoom := errors.New("boom")

	cb.Record(errBoom)
	cb.Record(errBoom)
	cb.Record(nil)
	cb.Record(errBoom)
	cb.Record(errBoom)

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed (counter reset by success), got %v", cb.State())
	}
}

func TestCircuit_HalfOpenAfterResetTimeout(t *testing.T) {
	cb, now := newTestBreaker(1, 10*time.Second)

	cb.Record(errors.New("boom"))
	if err := cb.Allow(); err == nil {
		t.Fatal("expected rejection while open")
	}

	*now = now.Add(11 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected probe allowed after reset timeout, got %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Errorf("expected half-open, got %v", cb.State())
	}
}

func TestCircuit_ProbeOutcome(t *testing.T) {
	cb, now := newTestBreaker(1, 10*time.Second)
	cb.Record(errors.New("boom"))
	*now = now.Add(11 * time.Second)
	_ = cb.Allow()

	// Failed probe reopens.
	cb.Record(errors.New("still down"))
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after failed probe, got %v", cb.State())
	}

	*now = now.Add(11 * time.Second)
	_ = cb.Allow()
	cb.Record(nil)
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %v", cb.State())
	}
}

func TestCircuit_HalfOpenAdmitsOneProbeAtATime(t *testing.T) {
	cb, now := newTestBreaker(1, 10*time.Second)
	cb.Record(errors.New("boom"))
	*now = now.Add(11 * time.Second)

	// The first caller after the reset timeout becomes the probe;
	// everyone else stays rejected until its outcome is recorded.
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected first caller admitted as probe, got %v", err)
	}
	if err := cb.Allow(); err == nil {
		t.Fatal("expected second caller rejected while probe in flight")
	}
	if err := cb.Allow(); err == nil {
		t.Fatal("expected third caller rejected while probe in flight")
	}

	cb.Record(nil)
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed after successful probe, got %v", cb.State())
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("expected Allow after close, got %v", err)
	}
}

func TestCircuit_FailedProbeKeepsRejecting(t *testing.T) {
	cb, now := newTestBreaker(1, 10*time.Second)
	cb.Record(errors.New("boom"))
	*now = now.Add(11 * time.Second)

	_ = cb.Allow()
	cb.Record(errors.New("still down"))

	if err := cb.Allow(); err == nil {
		t.Error("expected rejection while reopened")
	}
	*now = now.Add(11 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Errorf("expected a fresh probe after another reset timeout, got %v", err)
	}
	if err := cb.Allow(); err == nil {
		t.Error("expected second caller rejected while fresh probe in flight")
	}
}

func TestCircuit_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	cb.Record(errors.New("boom"))
	cb.Reset()

	want := []string{"closed->open", "open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}
