package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var errBoom = errors.New("boom")

func fail(_ context.Context) error { return errBoom }
func ok(_ context.Context) error   { return nil }

func TestCircuitBreaker_ClosedState_PassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	var calls int
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Error("should not be called when circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	if n, _ := cb.Counters(); n != 2 {
		t.Fatalf("expected 2 failures, got %d", n)
	}

	_ = cb.Execute(context.Background(), ok)
	if n, state := cb.Counters(); n != 0 || state != CircuitClosed {
		t.Errorf("expected reset closed breaker, got %d failures in %s", n, state)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var transitions []CircuitState
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     30 * time.Second,
		Clock:            clock,
		OnStateChange:    func(_, to CircuitState) { transitions = append(transitions, to) },
	})

	_ = cb.Execute(context.Background(), fail)
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	clock.Advance(31 * time.Second)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", cb.State())
	}

	// A failed probe reopens the circuit.
	_ = cb.Execute(context.Background(), fail)
	if cb.State() != CircuitOpen {
		t.Fatalf("expected reopened circuit, got %s", cb.State())
	}

	clock.Advance(31 * time.Second)
	if err := cb.Execute(context.Background(), ok); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}

	want := []CircuitState{CircuitOpen, CircuitHalfOpen, CircuitOpen, CircuitHalfOpen, CircuitClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_CanceledDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return context.Canceled })
	if cb.State() != CircuitClosed {
		t.Errorf("cancellation should not open the circuit, got %s", cb.State())
	}
}

func TestExecuteVal(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	v, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		return "olá", nil
	})
	if err != nil || v != "olá" {
		t.Errorf("got %q, %v", v, err)
	}
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(2, 10)
	if cfg.FailureThreshold != 2 || cfg.ResetTimeout != 10*time.Second {
		t.Errorf("unexpected config: %+v", cfg)
	}
	cb := NewCircuitBreaker(FromCircuitConfig(0, 0))
	if cb.cfg.FailureThreshold != 5 || cb.cfg.ResetTimeout != 30*time.Second {
		t.Errorf("defaults not applied: %+v", cb.cfg)
	}
}
