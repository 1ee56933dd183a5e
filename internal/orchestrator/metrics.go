package orchestrator

import (
	"runtime"
	"time"

	"engined/internal/provider"
	"engined/pkg/types"
)

// slotStats accumulates counters per tier/domain slot. Guarded by o.mu.
type slotStats struct {
	loads        int
	failures     int
	cacheHits    int
	consecFails  int
	totalLoad    time.Duration
	lastLoad     time.Duration
	lastErr      string
	tokens       int
	lastModel    string
	lastSuccess  time.Time
}

func slotKey(tier Tier, domain string) string {
	if domain == "" {
		domain = "default"
	}
	return string(tier) + "-" + domain
}

func domainLabel(lctx LoadContext) string {
	if lctx.Domain == "" {
		return "default"
	}
	return lctx.Domain
}

func (o *Orchestrator) statsFor(tier Tier, domain string) *slotStats {
	key := slotKey(tier, domain)
	s := o.stats[key]
	if s == nil {
		s = &slotStats{}
		o.stats[key] = s
	}
	return s
}

func (o *Orchestrator) recordSuccess(tier Tier, lctx LoadContext, model string, dur time.Duration) {
	o.mu.Lock()
	s := o.statsFor(tier, lctx.Domain)
	s.loads++
	s.consecFails = 0
	s.totalLoad += dur
	s.lastLoad = dur
	s.lastModel = model
	s.lastSuccess = o.now()
	o.mu.Unlock()
}

func (o *Orchestrator) recordFailure(tier Tier, lctx LoadContext, err error) {
	o.mu.Lock()
	s := o.statsFor(tier, lctx.Domain)
	s.loads++
	s.failures++
	s.consecFails++
	if err != nil {
		s.lastErr = err.Error()
	}
	o.mu.Unlock()
}

func (o *Orchestrator) recordCacheHit(tier Tier, lctx LoadContext) {
	o.mu.Lock()
	o.statsFor(tier, lctx.Domain).cacheHits++
	o.mu.Unlock()
}

func (o *Orchestrator) recordUsage(tier Tier, lctx LoadContext, tokens int) {
	o.mu.Lock()
	o.statsFor(tier, lctx.Domain).tokens += tokens
	o.mu.Unlock()
	promTokens.WithLabelValues(string(tier), domainLabel(lctx)).Add(float64(tokens))
}

// EngineHealth reports the health view for one tier/domain slot. Pure
// read over accumulated counters and the entry state.
func (o *Orchestrator) EngineHealth(tier Tier, domain string) types.EngineHealth {
	key := cacheKey(tier, LoadContext{Domain: domain})
	o.mu.Lock()
	defer o.mu.Unlock()
	h := types.EngineHealth{Tier: string(tier), Domain: domain, State: "absent"}
	if ent := o.entries[key]; ent != nil {
		h.State = string(ent.State)
	}
	s := o.stats[slotKey(tier, domain)]
	if s != nil {
		if s.loads > 0 {
			h.SuccessRate = float64(s.loads-s.failures) / float64(s.loads)
		}
		h.ConsecutiveFailures = s.consecFails
		h.LastError = s.lastErr
		h.LastLoadMs = s.lastLoad.Milliseconds()
		h.Model = s.lastModel
		if !s.lastSuccess.IsZero() {
			h.LastSuccessUnix = s.lastSuccess.Unix()
		}
	}
	h.Healthy = h.State == string(StateReady) && (s == nil || s.consecFails == 0)
	return h
}

// PerformanceMetrics aggregates the counters for one tier/domain slot.
func (o *Orchestrator) PerformanceMetrics(tier Tier, domain string) types.PerformanceMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	m := types.PerformanceMetrics{Tier: string(tier), Domain: domain}
	s := o.stats[slotKey(tier, domain)]
	if s == nil {
		return m
	}
	m.Loads = s.loads
	m.Failures = s.failures
	m.CacheHits = s.cacheHits
	m.Tokens = s.tokens
	if ok := s.loads - s.failures; ok > 0 {
		m.AvgLoadMs = (s.totalLoad / time.Duration(ok)).Milliseconds()
	}
	if s.loads > 0 {
		m.SuccessRate = float64(s.loads-s.failures) / float64(s.loads)
	}
	return m
}

// SystemCapabilities reports the host environment the orchestrator sees.
func (o *Orchestrator) SystemCapabilities() types.SystemCapabilities {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return types.SystemCapabilities{
		NumCPU:       runtime.NumCPU(),
		GoMaxProcs:   runtime.GOMAXPROCS(0),
		HeapAllocMB:  int(ms.HeapAlloc / (1024 * 1024)),
		SysMB:        int(ms.Sys / (1024 * 1024)),
		RuntimeBuilt: provider.RuntimeBuilt(),
	}
}
