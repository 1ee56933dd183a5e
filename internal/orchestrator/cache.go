package orchestrator

import (
	"context"
	"time"
)

// ttlFor returns the context-appropriate TTL: domain-scoped sessions run
// longer, so revalidating them mid-session is wasteful.
func (o *Orchestrator) ttlFor(lctx LoadContext) time.Duration {
	if lctx.Domain != "" {
		return o.cfg.DomainTTL
	}
	return o.cfg.GenericTTL
}

// acquireKeyLock serializes check-then-act access to one cache key. The
// wait resolves exactly when the holder releases (no polling). A wait
// exceeding LockWait is a soft degradation: the caller gets a
// lockTimeoutError and a no-op release, and proceeds without exclusion.
func (o *Orchestrator) acquireKeyLock(ctx context.Context, key string) (func(), error) {
	o.mu.Lock()
	ch, ok := o.keyLocks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		o.keyLocks[key] = ch
	}
	o.mu.Unlock()

	timer := time.NewTimer(o.cfg.LockWait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return func() {}, cancellationError{op: "lock wait for " + key}
	case <-timer.C:
		o.cfg.Logger.Warn().Str("key", key).Dur("waited", o.cfg.LockWait).
			Msg("cache lock wait timed out; proceeding without exclusion")
		o.publish("lock_timeout", key, nil)
		return func() {}, lockTimeoutError{key: key}
	}
}

// isProtectedLocked checks the lease lazily against the monotonic
// deadline, reaping it once expired. Caller holds o.mu.
func (o *Orchestrator) isProtectedLocked(key string) bool {
	dl, ok := o.leases[key]
	if !ok {
		return false
	}
	if o.now().After(dl) {
		delete(o.leases, key)
		promProtectedLeases.Dec()
		return false
	}
	return true
}

// evict removes an entry and releases its engine in the background. The
// handle is fenced immediately so callers cannot race a completion onto a
// freed session. A key under an active protection lease still loses its
// cache entry (a fresh load may proceed), but the engine itself stays
// live and unfenced for the lease holder: its disposal is parked until
// the lease is released or expires.
func (o *Orchestrator) evict(key string, reason string) {
	o.mu.Lock()
	ent := o.entries[key]
	if ent == nil {
		o.mu.Unlock()
		return
	}
	delete(o.entries, key)
	h := ent.handle
	if h != nil && o.isProtectedLocked(key) {
		o.orphans[key] = append(o.orphans[key], h)
		o.mu.Unlock()
		o.publish("cache_evict", key, map[string]any{"reason": reason, "deferred": true})
		return
	}
	o.mu.Unlock()

	o.publish("cache_evict", key, map[string]any{"reason": reason})
	if h != nil && !h.disposed.Swap(true) {
		go func() {
			_ = o.cfg.Provider.Dispose(context.Background(), h.sess)
		}()
	}
}

// releaseOrphans disposes handles whose eviction was parked behind a
// protection lease, once the lease no longer holds. Caller must not hold
// o.mu.
func (o *Orchestrator) releaseOrphans(key string) {
	o.mu.Lock()
	if o.isProtectedLocked(key) {
		o.mu.Unlock()
		return
	}
	hs := o.orphans[key]
	delete(o.orphans, key)
	o.mu.Unlock()

	for _, h := range hs {
		if h.disposed.Swap(true) {
			continue
		}
		_ = o.cfg.Provider.Dispose(context.Background(), h.sess)
	}
	if len(hs) > 0 {
		o.publish("dispose_deferred", key, map[string]any{"released": len(hs)})
	}
}

// Cleanup sweeps stale, unprotected, non-active entries and returns how
// many were removed. Entries mid-load, mid-disposal, or under a
// protection lease are never touched.
func (o *Orchestrator) Cleanup() int {
	o.mu.Lock()
	var victims []string
	for key, ent := range o.entries {
		if ent.State != StateReady {
			continue
		}
		if o.isProtectedLocked(key) || o.disposing[key] {
			continue
		}
		if o.now().Sub(ent.createdAt) > o.ttlFor(ent.Ctx) {
			victims = append(victims, key)
		}
	}
	o.mu.Unlock()

	for _, key := range victims {
		o.evict(key, "stale")
	}

	o.mu.Lock()
	orphaned := make([]string, 0, len(o.orphans))
	for key := range o.orphans {
		orphaned = append(orphaned, key)
	}
	o.mu.Unlock()
	for _, key := range orphaned {
		o.releaseOrphans(key)
	}

	if len(victims) > 0 {
		o.cfg.Logger.Debug().Int("removed", len(victims)).Msg("cache cleanup sweep")
		o.publish("cleanup_sweep", "", map[string]any{"removed": len(victims)})
	}
	return len(victims)
}
