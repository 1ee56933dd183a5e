// Package provider defines the inference engine boundary: creation and
// disposal of opaque engine sessions. The real runtime (go-llama.cpp) is
// compiled in with the 'llama' build tag; a fail-fast stub is used
// otherwise so default builds stay CGO-free.
package provider

import (
	"context"
	"errors"
)

// Options configure engine creation.
type Options struct {
	CtxSize int
	Threads int
	// Progress is invoked at least at the start and end of a load.
	// Returning a non-nil error aborts the load cooperatively; the
	// provider does not guarantee the underlying work stops mid-flight.
	Progress func(fraction float64) error
}

// Params are per-call generation parameters.
type Params struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
	Stop        []string
}

// Session is one live inference engine capable of producing completions.
type Session interface {
	Complete(ctx context.Context, prompt string, p Params) (string, error)
	Close() error
}

// Provider creates and disposes engine sessions. Implementations are
// treated as slow and occasionally unreliable; callers wrap every call in
// a timeout and classify failures.
type Provider interface {
	Create(ctx context.Context, modelPath string, opts Options) (Session, error)
	Dispose(ctx context.Context, s Session) error
	// LiveResources reports how many native engine resources are still
	// held. Used to verify release after disposal.
	LiveResources() int
}

// ErrUnavailable is returned by the stub provider when the binary was
// built without the 'llama' tag.
var ErrUnavailable = errors.New("inference runtime not built (missing 'llama' build tag)")

// progress invokes cb if set, forwarding its abort error.
func progress(cb func(float64) error, fraction float64) error {
	if cb == nil {
		return nil
	}
	return cb(fraction)
}
