package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BatchResult pairs per-key successes with isolated per-key failures.
// One request's rejection never aborts its siblings.
type BatchResult struct {
	BatchID string
	Loaded  map[string]*EngineHandle
	Failed  map[string]error
}

// LoadBatch executes many load requests priority-ordered in sequential
// windows of at most maxConcurrency, pacing between windows. Under
// memory pressure (observed heap above the batch's tier threshold) the
// cap drops to 1 and the pacing lengthens, trading throughput for
// stability. The shared stop signal is checked before each window and
// aborts the remainder of the batch.
func (o *Orchestrator) LoadBatch(ctx context.Context, requests []LoadRequest, maxConcurrency int) BatchResult {
	res := BatchResult{
		BatchID: uuid.NewString(),
		Loaded:  make(map[string]*EngineHandle),
		Failed:  make(map[string]error),
	}
	if len(requests) == 0 {
		return res
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	sorted := append([]LoadRequest(nil), requests...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority.rank() < sorted[j].Priority.rank()
	})

	pacing := o.cfg.WindowPacing
	if mb := heapAllocMB(); mb > o.memThreshold(sorted) {
		maxConcurrency = 1
		pacing = o.cfg.PressurePacing
		o.publish("batch_pressure", "", map[string]any{"batch": res.BatchID, "heap_mb": mb})
		o.cfg.Logger.Warn().Str("batch", res.BatchID).Int("heap_mb", mb).
			Msg("memory pressure: serializing batch")
	}

	o.publish("batch_start", "", map[string]any{
		"batch": res.BatchID, "requests": len(sorted), "concurrency": maxConcurrency,
	})

	var resMu sync.Mutex
	for off := 0; off < len(sorted); off += maxConcurrency {
		if ctx.Err() != nil || o.cfg.Exec.StopRequested() {
			for _, req := range sorted[off:] {
				res.Failed[req.Key()] = cancellationError{op: "batch " + res.BatchID}
			}
			o.publish("batch_abort", "", map[string]any{"batch": res.BatchID, "remaining": len(sorted) - off})
			break
		}

		end := off + maxConcurrency
		if end > len(sorted) {
			end = len(sorted)
		}
		window := sorted[off:end]
		promBatchWindows.Inc()

		var wg sync.WaitGroup
		for _, req := range window {
			wg.Add(1)
			go func(req LoadRequest) {
				defer wg.Done()
				h, err := o.LoadModel(ctx, req.Tier, req.Context)
				resMu.Lock()
				defer resMu.Unlock()
				if err != nil {
					res.Failed[req.Key()] = err
					return
				}
				res.Loaded[req.Key()] = h
			}(req)
		}
		wg.Wait()

		if end < len(sorted) {
			o.pace(ctx, pacing)
		}
	}

	o.publish("batch_done", "", map[string]any{
		"batch": res.BatchID, "loaded": len(res.Loaded), "failed": len(res.Failed),
	})
	return res
}

// memThreshold picks the threshold for the most demanding tier in the batch.
func (o *Orchestrator) memThreshold(reqs []LoadRequest) int {
	top := TierLow
	for _, r := range reqs {
		if r.Tier.Rank() > top.Rank() {
			top = r.Tier
		}
	}
	if v, ok := o.cfg.MemThresholdMB[top]; ok && v > 0 {
		return v
	}
	return defaultMemThresholds()[top]
}

// pace is the inter-window delay.
func (o *Orchestrator) pace(ctx context.Context, d time.Duration) {
	o.sleep(ctx, d)
}
