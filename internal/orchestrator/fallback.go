package orchestrator

import "context"

// fallbackSequences maps a primary tier to the descending tiers attempted
// when its load fails.
var fallbackSequences = map[Tier][]Tier{
	TierHigh: {TierHigh, TierMid, TierLow},
	TierMid:  {TierMid, TierLow},
	TierLow:  {TierLow},
}

// LoadWithFallback retries a load across the tier-downgrade sequence for
// the primary tier, up to maxRetries attempts (0 means the full
// sequence). Every intermediate failure is an expected demotion, not an
// alarm; only exhaustion of the sequence surfaces an error, wrapping the
// last failure with the attempted-tier trail.
func (o *Orchestrator) LoadWithFallback(ctx context.Context, primary Tier, lctx LoadContext, maxRetries int) (*EngineHandle, error) {
	if !primary.Valid() {
		return nil, validationError{key: string(primary), reason: "unknown tier"}
	}
	seq := fallbackSequences[primary]
	if maxRetries <= 0 || maxRetries > len(seq) {
		maxRetries = len(seq)
	}

	var last error
	var tried []Tier
	for i := 0; i < maxRetries; i++ {
		tier := seq[i]
		if ctx.Err() != nil || o.cfg.Exec.StopRequested() {
			return nil, cancellationError{op: "fallback load " + string(primary)}
		}
		h, err := o.LoadModel(ctx, tier, lctx)
		if err == nil {
			if i > 0 {
				o.publish("fallback_success", cacheKey(tier, lctx), map[string]any{
					"primary": string(primary), "served": string(tier), "demotions": i,
				})
			}
			return h, nil
		}
		last = err
		tried = append(tried, tier)
		if i+1 < maxRetries {
			next := seq[i+1]
			promDemotions.WithLabelValues(string(tier), string(next)).Inc()
			o.publish("fallback_demote", cacheKey(tier, lctx), map[string]any{
				"from": string(tier), "to": string(next), "error": err.Error(),
			})
			o.cfg.Logger.Warn().Str("from", string(tier)).Str("to", string(next)).Err(err).
				Msg("tier load failed; demoting")
		}
	}
	return nil, fallbackExhaustedError{tiers: tried, last: last}
}
