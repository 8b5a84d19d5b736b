package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != ModeFixed {
		t.Fatalf("expected fixed default mode got %s", p.Mode)
	}
	if p.Initial != 200*time.Millisecond {
		t.Fatalf("expected initial 200ms got %v", p.Initial)
	}
	if p.MaxRetries != 1 {
		t.Fatalf("expected max retries 1 got %d", p.MaxRetries)
	}
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(ModeLinear, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != ModeLinear {
		t.Fatalf("expected linear mode got %s", p.Mode)
	}
	if p.MaxRetries != 5 {
		t.Fatalf("expected maxRetries 5 got %d", p.MaxRetries)
	}
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	linear := NewPolicy(ModeLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	cases := []struct {
		attempt int
		want    time.Duration
	}{{1, 100 * time.Millisecond}, {2, 200 * time.Millisecond}, {3, 250 * time.Millisecond}}
	for _, c := range cases {
		if got := linear.Delay(c.attempt); got != c.want {
			t.Fatalf("linear attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}

	exp := NewPolicy(ModeExponential, 50*time.Millisecond, 160*time.Millisecond, 5)
	if got := exp.Delay(3); got != 160*time.Millisecond {
		t.Fatalf("exp attempt 3 expected cap 160ms got %v", got)
	}
	if d := exp.Delay(0); d != 0 {
		t.Fatalf("attempt 0 expected 0 got %v", d)
	}
}

func TestNormalizeMode(t *testing.T) {
	if NormalizeMode(" Exponential ") != ModeExponential {
		t.Fatal("expected exponential")
	}
	if NormalizeMode("bogus") != "" {
		t.Fatal("expected unknown mode to normalize to empty")
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	p := NewPolicy(ModeFixed, time.Millisecond, time.Millisecond, 2)
	transient := errors.New("transient")
	calls := 0
	err := p.Do(context.Background(), func(err error) bool { return errors.Is(err, transient) }, func(context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentFailure(t *testing.T) {
	p := NewPolicy(ModeFixed, time.Millisecond, time.Millisecond, 5)
	permanent := errors.New("permanent")
	calls := 0
	err := p.Do(context.Background(), func(error) bool { return false }, func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected single call with permanent error, got %d calls err=%v", calls, err)
	}
}
