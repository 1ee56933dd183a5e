package orchestrator

import (
	"context"
	"runtime"
)

// Protect installs a protection lease for a cache key, replacing any
// existing lease. While active, the engine behind the key cannot be
// disposed by cleanup, tier transitions, or explicit disposal. The lease
// expires on its own after ProtectFor as a safety net against leaks.
func (o *Orchestrator) Protect(key string) {
	o.mu.Lock()
	_, had := o.leases[key]
	o.leases[key] = o.now().Add(o.cfg.ProtectFor)
	o.mu.Unlock()
	if !had {
		promProtectedLeases.Inc()
	}
	o.publish("protect", key, map[string]any{"lease_sec": int(o.cfg.ProtectFor.Seconds())})
}

// Unprotect removes the lease early and disposes any engine whose
// eviction was parked behind it.
func (o *Orchestrator) Unprotect(key string) {
	o.mu.Lock()
	_, had := o.leases[key]
	delete(o.leases, key)
	o.mu.Unlock()
	if had {
		promProtectedLeases.Dec()
	}
	o.publish("unprotect", key, nil)
	o.releaseOrphans(key)
}

// Protected reports whether the key currently holds an unexpired lease.
func (o *Orchestrator) Protected(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.isProtectedLocked(key)
}

// DisposeEngine releases the engine behind a tier/context slot. It is a
// no-op while the key is protected or any execution flag is set, and it
// is idempotent: disposing an absent slot does nothing. The provider's
// dispose runs under a per-key disposal lock, followed by a settle delay
// so native resources finish releasing before the slot is reused.
func (o *Orchestrator) DisposeEngine(ctx context.Context, tier Tier, lctx LoadContext) error {
	return o.disposeByKey(ctx, cacheKey(tier, lctx))
}

func (o *Orchestrator) disposeByKey(ctx context.Context, key string) error {
	o.mu.Lock()
	if o.isProtectedLocked(key) {
		o.mu.Unlock()
		o.publish("dispose_skip", key, map[string]any{"reason": "protected"})
		return nil
	}
	if o.execActive() {
		o.mu.Unlock()
		o.publish("dispose_skip", key, map[string]any{"reason": "execution-active"})
		return nil
	}
	if o.disposing[key] {
		// Another disposal owns the key; mutual exclusion, not an error.
		o.mu.Unlock()
		return nil
	}
	ent := o.entries[key]
	if ent == nil || ent.handle == nil {
		o.mu.Unlock()
		return nil
	}
	o.disposing[key] = true
	ent.State = StateDisposing
	h := ent.handle
	o.mu.Unlock()

	o.publish("dispose_start", key, map[string]any{"model": ent.Model})

	var derr error
	if !h.disposed.Swap(true) {
		derr = o.cfg.Provider.Dispose(ctx, h.sess)
	}
	o.sleep(ctx, o.cfg.SettleDelay)

	o.mu.Lock()
	delete(o.disposing, key)
	if derr != nil {
		// Terminal: no in-place repair, only a fresh load recovers the slot.
		ent.State = StateError
		ent.err = derr
		o.mu.Unlock()
		o.publish("dispose_error", key, map[string]any{"error": derr.Error()})
		o.cfg.Logger.Error().Str("key", key).Err(derr).Msg("engine disposal failed")
		return derr
	}
	delete(o.entries, key)
	o.mu.Unlock()

	promDisposals.Inc()
	o.publish("dispose_done", key, nil)
	o.cfg.Logger.Debug().Str("key", key).Msg("engine disposed")
	return nil
}

// RecreateOptions tune RecreateEngine. VerifyRelease selects the cautious
// path that polls the provider's resource probe until native resources
// are confirmed released before building the replacement.
type RecreateOptions struct {
	Context       LoadContext
	VerifyRelease bool
}

// RecreateEngine atomically tears down and rebuilds the engine for a
// tier. Single-flight across all keys: the provider is assumed to back
// only one physical engine at a time. Any step's failure leaves the slot
// in StateError and propagates; the caller recovers with a fresh load.
func (o *Orchestrator) RecreateEngine(ctx context.Context, tier Tier, opts RecreateOptions) (*EngineHandle, error) {
	if !o.recreating.CompareAndSwap(false, true) {
		return nil, recreateBusyError{}
	}
	defer o.recreating.Store(false)

	key := cacheKey(tier, opts.Context)
	if o.execActive() {
		return nil, validationError{key: key, reason: "execution active"}
	}
	o.publish("recreate_start", key, map[string]any{"verify_release": opts.VerifyRelease})

	o.mu.Lock()
	var old *EngineHandle
	if ent := o.entries[key]; ent != nil {
		ent.State = StateRecreating
		old = ent.handle
	}
	o.mu.Unlock()

	if old != nil && !old.disposed.Swap(true) {
		if err := o.cfg.Provider.Dispose(ctx, old.sess); err != nil {
			o.markError(key, tier, opts.Context, err)
			return nil, err
		}
	}
	o.sleep(ctx, o.cfg.SettleDelay)

	if opts.VerifyRelease {
		if err := o.awaitRelease(ctx); err != nil {
			o.markError(key, tier, opts.Context, err)
			return nil, err
		}
	}

	// Clear references before building the replacement.
	o.mu.Lock()
	delete(o.entries, key)
	o.mu.Unlock()
	if o.cfg.GCHint {
		runtime.GC()
	}

	modelID, err := o.SelectModel(tier, opts.Context.Domain)
	if err != nil {
		o.markError(key, tier, opts.Context, err)
		return nil, err
	}
	h, err := o.createEngine(ctx, modelID, tier, opts.Context)
	if err != nil {
		o.markError(key, tier, opts.Context, err)
		return nil, err
	}
	h.onUsage = func(tokens int) { o.recordUsage(tier, opts.Context, tokens) }

	now := o.now()
	ent := &cacheEntry{
		Key:       key,
		Tier:      tier,
		Ctx:       opts.Context,
		Model:     modelID,
		State:     StateReady,
		handle:    h,
		ready:     closedChan(),
		createdAt: now,
		lastUsed:  now,
	}
	// The replacement must answer a real completion before it is swapped
	// in. The full signal quorum does not apply here: the recreation
	// flag is set by this very call.
	if !o.probe(ctx, ent, h) {
		if !h.disposed.Swap(true) {
			_ = o.cfg.Provider.Dispose(context.Background(), h.sess)
		}
		err := validationError{key: key, reason: "replacement engine failed validation"}
		o.markError(key, tier, opts.Context, err)
		return nil, err
	}

	// Atomic swap of the active handle.
	o.mu.Lock()
	o.entries[key] = ent
	o.lastTier = tier
	o.lastKey = key
	o.mu.Unlock()

	promRecreations.Inc()
	o.publish("recreate_ready", key, map[string]any{"model": modelID})
	o.cfg.Logger.Info().Str("key", key).Str("model", modelID).Msg("engine recreated")
	return h, nil
}

// awaitRelease polls the provider's resource probe with backoff until no
// native resources remain held.
func (o *Orchestrator) awaitRelease(ctx context.Context) error {
	backoff := o.cfg.ReleaseBackoff
	for i := 0; i < o.cfg.ReleaseProbes; i++ {
		if o.cfg.Provider.LiveResources() == 0 {
			return nil
		}
		o.sleep(ctx, backoff)
		backoff *= 2
		if ctx.Err() != nil {
			return cancellationError{op: "release verification"}
		}
	}
	return validationError{key: "recreate", reason: "native resources still held after dispose"}
}

// markError pins the slot in the terminal error state.
func (o *Orchestrator) markError(key string, tier Tier, lctx LoadContext, cause error) {
	o.mu.Lock()
	ent := o.entries[key]
	if ent == nil {
		ent = &cacheEntry{Key: key, Tier: tier, Ctx: lctx, ready: closedChan(), createdAt: o.now()}
		o.entries[key] = ent
	}
	ent.State = StateError
	ent.err = cause
	o.mu.Unlock()
	o.recordFailure(tier, lctx, cause)
	o.publish("recreate_error", key, map[string]any{"error": cause.Error(), "class": string(ClassOf(cause))})
	o.cfg.Logger.Error().Str("key", key).Err(cause).Msg("engine recreation failed")
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
