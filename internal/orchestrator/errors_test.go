package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassifySentinels(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"cancellation", cancellationError{op: "load"}, ClassCancelled},
		{"context cancelled", context.Canceled, ClassCancelled},
		{"timeout", timeoutError{model: "m", after: time.Second}, ClassTimeout},
		{"deadline", context.DeadlineExceeded, ClassTimeout},
		{"not found", modelNotFoundError{tier: TierHigh}, ClassModelNotFound},
		{"lock timeout", lockTimeoutError{key: "low-default"}, ClassLockTimeout},
		{"validation", validationError{key: "k", reason: "r"}, ClassValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyMessageMarkers(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorClass
	}{
		{"CUDA out of memory", ClassMemory},
		{"mmap failed: cannot allocate", ClassMemory},
		{"webgpu device lost", ClassGPU},
		{"VRAM exhausted", ClassGPU},
		{"connection refused", ClassNetwork},
		{"model download stalled", ClassNetwork},
		{"something else entirely", ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			if got := Classify(errors.New(tc.msg)); got != tc.want {
				t.Fatalf("Classify(%q) = %s, want %s", tc.msg, got, tc.want)
			}
		})
	}
}

func TestClassOfPrefersLoadErrorClass(t *testing.T) {
	le := &LoadError{Class: ClassGPU, Key: "mid-default", Err: errors.New("opaque")}
	if got := ClassOf(le); got != ClassGPU {
		t.Fatalf("ClassOf = %s, want gpu", got)
	}
	// Wrapping preserves the classification.
	wrapped := &LoadError{Class: ClassTimeout, Err: timeoutError{model: "m", after: time.Second}}
	if !IsTimeout(wrapped) {
		t.Fatal("IsTimeout must see through LoadError")
	}
}

func TestFallbackExhaustedUnwrap(t *testing.T) {
	inner := timeoutError{model: "m", after: time.Second}
	err := fallbackExhaustedError{tiers: []Tier{TierHigh, TierMid}, last: inner}
	if !IsTimeout(err) {
		t.Fatal("exhaustion error must unwrap to the last failure")
	}
	var te timeoutError
	if !errors.As(err, &te) || te.model != "m" {
		t.Fatalf("unwrapped = %+v", te)
	}
}

func TestExportedConstructors(t *testing.T) {
	if !IsModelNotFound(NewModelNotFound(TierHigh, "coding")) {
		t.Fatal("NewModelNotFound")
	}
	if !IsTimeout(NewTimeout("m", time.Second)) {
		t.Fatal("NewTimeout")
	}
	if !IsCancelled(NewCancellation("stop")) {
		t.Fatal("NewCancellation")
	}
	if !IsRecreateBusy(NewRecreateBusy()) {
		t.Fatal("NewRecreateBusy")
	}
}
