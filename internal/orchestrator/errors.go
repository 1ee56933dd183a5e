package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorClass is the failure classification attached to surfaced errors.
type ErrorClass string

const (
	ClassNetwork       ErrorClass = "network"
	ClassMemory        ErrorClass = "memory"
	ClassGPU           ErrorClass = "gpu"
	ClassTimeout       ErrorClass = "timeout"
	ClassModelNotFound ErrorClass = "model-not-found"
	ClassValidation    ErrorClass = "validation"
	ClassCancelled     ErrorClass = "cancelled"
	ClassLockTimeout   ErrorClass = "lock-timeout"
	ClassUnknown       ErrorClass = "unknown"
)

type modelNotFoundError struct {
	tier   Tier
	domain string
}

func (e modelNotFoundError) Error() string {
	if e.domain != "" {
		return fmt.Sprintf("no loadable model for tier %q domain %q", e.tier, e.domain)
	}
	return fmt.Sprintf("no loadable model for tier %q", e.tier)
}

// IsModelNotFound reports whether err indicates an empty selection result.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

type timeoutError struct {
	model string
	after time.Duration
}

func (e timeoutError) Error() string {
	return fmt.Sprintf("engine creation for %q timed out after %s", e.model, e.after)
}

// IsTimeout reports whether err is a creation-timeout failure.
func IsTimeout(err error) bool {
	var e timeoutError
	return errors.As(err, &e) || errors.Is(err, context.DeadlineExceeded)
}

type cancellationError struct{ op string }

func (e cancellationError) Error() string { return "cancelled: " + e.op }

// IsCancelled reports whether err is a cooperative-cancellation rejection.
func IsCancelled(err error) bool {
	var e cancellationError
	return errors.As(err, &e) || errors.Is(err, context.Canceled)
}

type lockTimeoutError struct{ key string }

func (e lockTimeoutError) Error() string { return "lock wait timed out for key " + e.key }

// IsLockTimeout reports whether err is a soft lock-acquisition timeout.
func IsLockTimeout(err error) bool {
	var e lockTimeoutError
	return errors.As(err, &e)
}

type validationError struct {
	key    string
	reason string
}

func (e validationError) Error() string { return "validation failed for " + e.key + ": " + e.reason }

// IsValidation reports whether err is a health/state validation failure.
func IsValidation(err error) bool {
	var e validationError
	return errors.As(err, &e)
}

type recreateBusyError struct{}

func (recreateBusyError) Error() string { return "engine recreation already in progress" }

// IsRecreateBusy reports whether err indicates a rejected concurrent
// recreation attempt.
func IsRecreateBusy(err error) bool {
	var e recreateBusyError
	return errors.As(err, &e)
}

// fallbackExhaustedError wraps the last error after the whole downgrade
// sequence failed, keeping the attempted-tier trail visible to callers.
type fallbackExhaustedError struct {
	tiers []Tier
	last  error
}

func (e fallbackExhaustedError) Error() string {
	names := make([]string, len(e.tiers))
	for i, t := range e.tiers {
		names[i] = string(t)
	}
	return fmt.Sprintf("all fallback tiers failed (%s): %v", strings.Join(names, "->"), e.last)
}

func (e fallbackExhaustedError) Unwrap() error { return e.last }

// LoadError enriches a classified failure with recovery context.
type LoadError struct {
	Class   ErrorClass
	Model   string
	Key     string
	Elapsed time.Duration
	HeapMB  int
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s failed (%s, model=%q, elapsed=%s, heap=%dMB): %v",
		e.Key, e.Class, e.Model, e.Elapsed.Round(time.Millisecond), e.HeapMB, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Constructors for callers outside the package that need classified
// failures, such as adapters layered on top of the orchestrator.

// NewModelNotFound builds an empty-selection failure for a tier/domain.
func NewModelNotFound(tier Tier, domain string) error {
	return modelNotFoundError{tier: tier, domain: domain}
}

// NewTimeout builds a creation-timeout failure.
func NewTimeout(model string, after time.Duration) error {
	return timeoutError{model: model, after: after}
}

// NewCancellation builds a cooperative-cancellation rejection.
func NewCancellation(op string) error { return cancellationError{op: op} }

// NewRecreateBusy reports a rejected concurrent recreation attempt.
func NewRecreateBusy() error { return recreateBusyError{} }

// ClassOf extracts the classification from any surfaced error.
func ClassOf(err error) ErrorClass {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Class
	}
	return Classify(err)
}

// Classify maps an arbitrary failure to the taxonomy. Sentinel types win;
// otherwise the provider's message is inspected for well-known markers.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}
	switch {
	case IsCancelled(err):
		return ClassCancelled
	case IsTimeout(err):
		return ClassTimeout
	case IsModelNotFound(err):
		return ClassModelNotFound
	case IsLockTimeout(err):
		return ClassLockTimeout
	case IsValidation(err):
		return ClassValidation
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "out of memory", "oom", "alloc", "mmap"):
		return ClassMemory
	case containsAny(msg, "gpu", "cuda", "vram", "webgpu", "metal"):
		return ClassGPU
	case containsAny(msg, "network", "connection", "fetch", "dns", "tls", "download"):
		return ClassNetwork
	default:
		return ClassUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
