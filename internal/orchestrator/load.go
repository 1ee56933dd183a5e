package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"engined/internal/provider"
)

// LoadModel is the orchestrator's entry point: it returns a ready engine
// for the tier/context, serving from cache when a live, healthy entry
// exists and otherwise selecting and creating one. Loads for the same key
// are single-flight; concurrent callers share one provider invocation.
func (o *Orchestrator) LoadModel(ctx context.Context, tier Tier, lctx LoadContext) (*EngineHandle, error) {
	start := o.now()
	if !tier.Valid() {
		return nil, validationError{key: string(tier), reason: "unknown tier"}
	}
	if ctx.Err() != nil {
		return nil, cancellationError{op: "load " + string(tier)}
	}
	key := cacheKey(tier, lctx)
	opID := uuid.NewString()
	o.publish("load_start", key, map[string]any{"op": opID, "tier": string(tier), "purpose": lctx.Purpose})

	o.maybeDisposePreviousTier(ctx, tier)

	release, lockErr := o.acquireKeyLock(ctx, key)
	if lockErr != nil && IsCancelled(lockErr) {
		return nil, lockErr
	}
	// A lock timeout leaves release as a no-op: soft degradation, the
	// load proceeds without the cache's exclusion benefit.
	locked := lockErr == nil
	unlock := func() {
		if locked {
			release()
			locked = false
		}
	}
	defer unlock()

	var ent *cacheEntry
	for {
		o.mu.Lock()
		cur := o.entries[key]
		if cur == nil {
			break // install below, o.mu still held
		}
		switch cur.State {
		case StateError:
			// Terminal for that entry; recovery is a fresh load.
			delete(o.entries, key)
			o.mu.Unlock()
			continue
		case StateLoading:
			ready := cur.ready
			o.mu.Unlock()
			unlock()
			select {
			case <-ready:
			case <-ctx.Done():
				return nil, cancellationError{op: "load " + key}
			}
			if cur.err != nil {
				return nil, cur.err
			}
			if h := cur.handle; h != nil {
				o.touch(key)
				o.recordCacheHit(tier, lctx)
				o.publish("load_cache_hit", key, map[string]any{"op": opID, "model": cur.Model, "shared": true})
				return h, nil
			}
			continue
		case StateReady:
			h := cur.handle
			expired := o.now().Sub(cur.createdAt) > o.ttlFor(lctx)
			o.mu.Unlock()
			if !expired && o.validateEntry(ctx, cur, lctx) {
				o.touch(key)
				o.recordCacheHit(tier, lctx)
				promCacheHits.WithLabelValues(string(tier), domainLabel(lctx)).Inc()
				o.publish("load_cache_hit", key, map[string]any{"op": opID, "model": cur.Model})
				return h, nil
			}
			reason := "validation"
			if expired {
				reason = "stale"
			}
			o.evict(key, reason)
			continue
		default: // disposing or recreating: wait for the slot to settle
			o.mu.Unlock()
			unlock()
			o.sleep(ctx, 20*time.Millisecond)
			if ctx.Err() != nil {
				return nil, cancellationError{op: "load " + key}
			}
			continue
		}
	}

	// o.mu held, no entry for key: install the pending single-flight entry.
	now := o.now()
	ent = &cacheEntry{
		Key:       key,
		Tier:      tier,
		Ctx:       lctx,
		State:     StateLoading,
		ready:     make(chan struct{}),
		createdAt: now,
		lastUsed:  now,
	}
	o.entries[key] = ent
	o.lastTier = tier
	o.lastKey = key
	o.mu.Unlock()
	unlock()

	modelID, err := o.SelectModel(tier, lctx.Domain)
	if err != nil {
		return nil, o.failLoad(ent, opID, start, "", err)
	}
	h, err := o.createEngine(ctx, modelID, tier, lctx)
	if err != nil {
		return nil, o.failLoad(ent, opID, start, modelID, err)
	}
	h.onUsage = func(tokens int) { o.recordUsage(tier, lctx, tokens) }

	o.mu.Lock()
	ent.Model = modelID
	ent.handle = h
	ent.State = StateReady
	commit := o.now()
	ent.createdAt = commit
	ent.lastUsed = commit
	fields := map[string]any{"op": opID, "model": modelID}
	if prev, ok := o.lastUsedHint(key); ok {
		fields["prev_used_unix"] = prev.Unix()
		delete(o.lruMeta, key)
	}
	close(ent.ready)
	o.mu.Unlock()

	dur := o.now().Sub(start)
	fields["dur_ms"] = dur.Milliseconds()
	o.recordSuccess(tier, lctx, modelID, dur)
	promLoads.WithLabelValues(string(tier), domainLabel(lctx), "ok").Inc()
	promLoadDuration.WithLabelValues(string(tier), domainLabel(lctx)).Observe(dur.Seconds())
	o.publish("load_ready", key, fields)
	o.cfg.Logger.Info().Str("key", key).Str("model", modelID).Dur("dur", dur).Msg("engine ready")
	return h, nil
}

// failLoad settles a pending entry with an enriched error, wakes waiters,
// and records the failure against the key.
func (o *Orchestrator) failLoad(ent *cacheEntry, opID string, start time.Time, modelID string, err error) error {
	enriched := o.enrich(ent.Key, modelID, start, err)
	o.mu.Lock()
	ent.err = enriched
	ent.State = StateError
	close(ent.ready)
	if o.entries[ent.Key] == ent {
		delete(o.entries, ent.Key)
	}
	o.mu.Unlock()

	o.recordFailure(ent.Tier, ent.Ctx, enriched)
	promLoads.WithLabelValues(string(ent.Tier), domainLabel(ent.Ctx), "error").Inc()
	o.publish("load_fail", ent.Key, map[string]any{
		"op":    opID,
		"model": modelID,
		"class": string(ClassOf(enriched)),
		"error": enriched.Error(),
	})
	o.cfg.Logger.Error().Str("key", ent.Key).Str("model", modelID).Err(enriched).Msg("engine load failed")
	return enriched
}

// enrich wraps a failure with classification and recovery context before
// it crosses the LoadModel boundary.
func (o *Orchestrator) enrich(key, modelID string, start time.Time, err error) error {
	return &LoadError{
		Class:   Classify(err),
		Model:   modelID,
		Key:     key,
		Elapsed: o.now().Sub(start),
		HeapMB:  heapAllocMB(),
		Err:     err,
	}
}

// maybeDisposePreviousTier releases the prior tier's engine before a
// cross-tier load. The full previous key is tracked so a domain- or
// framework-scoped slot is found regardless of the new request's
// context; protection and execution guards live in disposeByKey.
func (o *Orchestrator) maybeDisposePreviousTier(ctx context.Context, tier Tier) {
	o.mu.Lock()
	prevTier, prevKey := o.lastTier, o.lastKey
	o.mu.Unlock()
	if prevTier == "" || prevTier == tier || o.execActive() {
		return
	}
	_ = o.disposeByKey(ctx, prevKey)
}

// createTimeout scales the tier's base creation timeout while execution
// is active, since resource pressure slows provider creation.
func (o *Orchestrator) createTimeout(tier Tier) time.Duration {
	base := o.cfg.CreateTimeout[tier]
	if base <= 0 {
		base = 60 * time.Second
	}
	if o.execActive() {
		return time.Duration(float64(base) * o.cfg.ContentionMult)
	}
	return base
}

// createEngine races the provider's creation call against the tier's
// timeout. The progress callback checks for cooperative cancellation at
// every invocation and aborts without waiting for provider completion.
func (o *Orchestrator) createEngine(ctx context.Context, modelID string, tier Tier, lctx LoadContext) (*EngineHandle, error) {
	path, ok := o.cfg.Source.PathFor(modelID)
	if !ok {
		return nil, modelNotFoundError{tier: tier, domain: lctx.Domain}
	}
	opts := provider.Options{
		CtxSize: o.cfg.LlamaCtx,
		Threads: o.cfg.LlamaThreads,
		Progress: func(fraction float64) error {
			if ctx.Err() != nil || o.cfg.Exec.StopRequested() {
				return cancellationError{op: "create " + modelID}
			}
			return nil
		},
	}

	type result struct {
		sess provider.Session
		err  error
	}
	done := make(chan result, 1)
	go func() {
		s, err := o.cfg.Provider.Create(ctx, path, opts)
		done <- result{sess: s, err: err}
	}()
	reapLate := func() {
		// The provider cannot be preempted mid-flight; release whatever
		// it eventually produces.
		go func() {
			if r := <-done; r.sess != nil {
				_ = o.cfg.Provider.Dispose(context.Background(), r.sess)
			}
		}()
	}

	timeout := o.createTimeout(tier)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		gen := o.cfg.Source.GenerationFor(string(tier), lctx.Domain)
		return &EngineHandle{model: modelID, tier: tier, domain: lctx.Domain, gen: gen, sess: r.sess}, nil
	case <-timer.C:
		reapLate()
		return nil, timeoutError{model: modelID, after: timeout}
	case <-ctx.Done():
		reapLate()
		return nil, cancellationError{op: "create " + modelID}
	}
}

// touch refreshes an entry's recency.
func (o *Orchestrator) touch(key string) {
	o.mu.Lock()
	if ent := o.entries[key]; ent != nil {
		ent.lastUsed = o.now()
	}
	o.mu.Unlock()
}
