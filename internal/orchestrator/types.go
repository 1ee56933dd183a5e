package orchestrator

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"engined/internal/provider"
	"engined/pkg/types"
)

// Tier is the capability class of a quantized engine, ordered by resource
// footprint vs. output quality.
type Tier string

const (
	TierLow  Tier = "low"
	TierMid  Tier = "mid"
	TierHigh Tier = "high"
)

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierLow, TierMid, TierHigh:
		return true
	default:
		return false
	}
}

// Rank orders tiers ascending by capability.
func (t Tier) Rank() int {
	switch t {
	case TierMid:
		return 1
	case TierHigh:
		return 2
	default:
		return 0
	}
}

// Priority orders requests inside a batch window.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// rank is the sort key: lower sorts first.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// LoadContext scopes a load request: an optional task domain, the
// framework context, and a free-form purpose recorded on telemetry.
type LoadContext struct {
	Domain    string
	Framework string
	Purpose   string
}

// LoadRequest identifies what to load and why.
type LoadRequest struct {
	Tier     Tier
	Context  LoadContext
	Priority Priority
}

// Key returns the cache key this request addresses.
func (r LoadRequest) Key() string { return cacheKey(r.Tier, r.Context) }

// cacheKey composes tier + optional domain + framework context into the
// string addressing one loadable slot, e.g. "low-default" or
// "mid-coding-webgpu".
func cacheKey(t Tier, lctx LoadContext) string {
	domain := lctx.Domain
	if domain == "" {
		domain = "default"
	}
	var b strings.Builder
	b.WriteString(string(t))
	b.WriteByte('-')
	b.WriteString(domain)
	if lctx.Framework != "" {
		b.WriteByte('-')
		b.WriteString(lctx.Framework)
	}
	return b.String()
}

// EngineState is the lifecycle state of one cache entry. Exactly one
// state holds per active key; StateError is terminal for that entry.
type EngineState string

const (
	StateLoading    EngineState = "loading"
	StateReady      EngineState = "ready"
	StateDisposing  EngineState = "disposing"
	StateRecreating EngineState = "recreating"
	StateError      EngineState = "error"
)

// cacheEntry is one loadable slot. At most one entry exists per key.
// A Loading entry owns a ready channel that concurrent loaders wait on;
// err and handle are written before ready is closed and never after.
type cacheEntry struct {
	Key   string
	Tier  Tier
	Ctx   LoadContext
	Model string

	State  EngineState
	handle *EngineHandle
	err    error
	ready  chan struct{}

	createdAt time.Time
	lastUsed  time.Time
}

// EngineHandle is an opaque reference to a ready inference session. The
// orchestrator owns it; callers may run completions but never dispose.
type EngineHandle struct {
	model    string
	tier     Tier
	domain   string
	gen      types.GenerationConfig
	sess     provider.Session
	disposed atomic.Bool

	onUsage func(tokens int)
}

// ModelID returns the identifier of the backing model.
func (h *EngineHandle) ModelID() string { return h.model }

// Tier returns the capability tier the engine was loaded at.
func (h *EngineHandle) Tier() Tier { return h.tier }

// Domain returns the domain scope, empty for generic loads.
func (h *EngineHandle) Domain() string { return h.domain }

// Generation returns the derived sampling configuration.
func (h *EngineHandle) Generation() types.GenerationConfig { return h.gen }

// Complete runs one completion with the handle's derived configuration.
func (h *EngineHandle) Complete(ctx context.Context, prompt string) (string, error) {
	if h.disposed.Load() || h.sess == nil {
		return "", validationError{key: h.model, reason: "engine disposed"}
	}
	out, err := h.sess.Complete(ctx, prompt, provider.Params{
		MaxTokens:   h.gen.MaxTokens,
		Temperature: h.gen.Temperature,
		TopP:        h.gen.TopP,
		TopK:        h.gen.TopK,
		Stop:        h.gen.Stop,
	})
	if err != nil {
		return "", err
	}
	if h.onUsage != nil {
		h.onUsage(len(strings.Fields(out)))
	}
	return out, nil
}
