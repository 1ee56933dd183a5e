package orchestrator

import (
	"context"

	"engined/internal/provider"
)

// validateEntry decides whether a cached engine may be reused. The
// structural check (handle exists, not disposed, session present) always
// gates. A functional probe — one real single-token completion under a
// short timeout — is skipped only for recent, domain-scoped entries.
// Acceptance needs a configurable number of the independent signals
// (structural, no disposal lock, no recreation in flight, state ready,
// probe when run) to pass; domain-scoped engines get one signal of slack
// to tolerate benign transient probe failures.
func (o *Orchestrator) validateEntry(ctx context.Context, ent *cacheEntry, lctx LoadContext) bool {
	h := ent.handle
	structural := h != nil && !h.disposed.Load() && h.sess != nil
	if !structural {
		o.publish("health_fail", ent.Key, map[string]any{"signal": "structural"})
		return false
	}

	o.mu.Lock()
	noDisposal := !o.disposing[ent.Key]
	stateReady := ent.State == StateReady
	age := o.now().Sub(ent.createdAt)
	o.mu.Unlock()
	noRecreate := !o.recreating.Load()

	signals := []bool{structural, noDisposal, noRecreate, stateReady}

	skipProbe := lctx.Domain != "" && age <= o.cfg.FreshWindow
	if !skipProbe {
		signals = append(signals, o.probe(ctx, ent, h))
	}

	required := o.cfg.HealthQuorum
	if required <= 0 || required > len(signals) {
		required = len(signals)
	}
	if lctx.Domain != "" {
		required--
	}

	passed := 0
	for _, ok := range signals {
		if ok {
			passed++
		}
	}
	if passed < required {
		o.publish("health_fail", ent.Key, map[string]any{"passed": passed, "required": required})
		o.cfg.Logger.Warn().Str("key", ent.Key).Int("passed", passed).Int("required", required).
			Msg("cached engine failed validation")
		return false
	}
	return true
}

// probe runs a minimal real completion against the cached session.
func (o *Orchestrator) probe(ctx context.Context, ent *cacheEntry, h *EngineHandle) bool {
	pctx, cancel := context.WithTimeout(ctx, o.cfg.ProbeTimeout)
	defer cancel()
	_, err := h.sess.Complete(pctx, "ok", provider.Params{MaxTokens: 1})
	if err != nil {
		o.publish("probe_fail", ent.Key, map[string]any{"error": err.Error()})
		return false
	}
	return true
}
