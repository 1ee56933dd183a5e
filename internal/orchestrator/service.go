package orchestrator

import (
	"context"

	"engined/pkg/types"
)

// DTO-facing methods consumed by the HTTP layer. They translate between
// pkg/types payloads and the native orchestrator API.

func parseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", validationError{key: s, reason: "tier must be low, mid or high"}
	}
	return t, nil
}

func loadContextOf(domain, framework, purpose string) LoadContext {
	return LoadContext{Domain: domain, Framework: framework, Purpose: purpose}
}

// Load serves one load request, optionally through the fallback
// controller, and reports whether the cache supplied the engine.
func (o *Orchestrator) Load(ctx context.Context, req types.LoadRequest) (types.LoadResponse, error) {
	tier, err := parseTier(req.Tier)
	if err != nil {
		return types.LoadResponse{}, err
	}
	lctx := loadContextOf(req.Domain, req.Framework, req.Purpose)
	start := o.now()
	before := o.peekHandle(cacheKey(tier, lctx))

	var h *EngineHandle
	if req.Fallback {
		h, err = o.LoadWithFallback(ctx, tier, lctx, req.MaxRetries)
	} else {
		h, err = o.LoadModel(ctx, tier, lctx)
	}
	if err != nil {
		return types.LoadResponse{}, err
	}
	key := cacheKey(h.Tier(), lctx)
	return types.LoadResponse{
		Key:        key,
		Model:      h.ModelID(),
		Tier:       string(h.Tier()),
		Domain:     h.Domain(),
		State:      string(StateReady),
		CacheHit:   before != nil && before == h,
		DurationMs: o.now().Sub(start).Milliseconds(),
		Generation: h.Generation(),
	}, nil
}

// Batch fans a batch request out through the scheduler.
func (o *Orchestrator) Batch(ctx context.Context, req types.BatchRequest) (types.BatchResponse, error) {
	reqs := make([]LoadRequest, 0, len(req.Requests))
	for _, r := range req.Requests {
		tier, err := parseTier(r.Tier)
		if err != nil {
			return types.BatchResponse{}, err
		}
		reqs = append(reqs, LoadRequest{
			Tier:     tier,
			Context:  loadContextOf(r.Domain, r.Framework, r.Purpose),
			Priority: Priority(r.Priority),
		})
	}
	res := o.LoadBatch(ctx, reqs, req.MaxConcurrency)
	out := types.BatchResponse{BatchID: res.BatchID}
	for key, h := range res.Loaded {
		out.Loaded = append(out.Loaded, types.LoadResponse{
			Key:        key,
			Model:      h.ModelID(),
			Tier:       string(h.Tier()),
			Domain:     h.Domain(),
			State:      string(StateReady),
			Generation: h.Generation(),
		})
	}
	for key, err := range res.Failed {
		out.Failed = append(out.Failed, types.BatchFailure{Key: key, Error: err.Error()})
	}
	return out, nil
}

// Dispose releases one engine slot.
func (o *Orchestrator) Dispose(ctx context.Context, req types.DisposeRequest) error {
	tier, err := parseTier(req.Tier)
	if err != nil {
		return err
	}
	return o.DisposeEngine(ctx, tier, loadContextOf(req.Domain, req.Framework, ""))
}

// Recreate rebuilds one engine slot atomically.
func (o *Orchestrator) Recreate(ctx context.Context, req types.RecreateRequest) (types.LoadResponse, error) {
	tier, err := parseTier(req.Tier)
	if err != nil {
		return types.LoadResponse{}, err
	}
	lctx := loadContextOf(req.Domain, req.Framework, "")
	start := o.now()
	h, err := o.RecreateEngine(ctx, tier, RecreateOptions{Context: lctx, VerifyRelease: req.VerifyRelease})
	if err != nil {
		return types.LoadResponse{}, err
	}
	return types.LoadResponse{
		Key:        cacheKey(tier, lctx),
		Model:      h.ModelID(),
		Tier:       string(h.Tier()),
		Domain:     h.Domain(),
		State:      string(StateReady),
		DurationMs: o.now().Sub(start).Milliseconds(),
		Generation: h.Generation(),
	}, nil
}

// peekHandle returns the ready handle for a key without loading.
func (o *Orchestrator) peekHandle(key string) *EngineHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ent := o.entries[key]; ent != nil && ent.State == StateReady {
		return ent.handle
	}
	return nil
}
