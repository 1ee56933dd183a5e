package types

// LoadRequest asks the orchestrator to make one engine available.
type LoadRequest struct {
	// Capability tier: low, mid or high.
	// example: mid
	Tier string `json:"tier" example:"mid"`
	// Optional task domain adjusting model choice and sampling config.
	// example: coding
	Domain string `json:"domain,omitempty" example:"coding"`
	// Optional framework context included in the cache key.
	// example: webgpu
	Framework string `json:"framework,omitempty" example:"webgpu"`
	// Free-form purpose string, recorded on telemetry events.
	// example: benchmark-run-12
	Purpose string `json:"purpose,omitempty" example:"benchmark-run-12"`
	// Scheduling priority inside a batch: high, medium or low.
	// example: high
	Priority string `json:"priority,omitempty" example:"high"`
	// When true, walk the tier-downgrade sequence on failure.
	// example: true
	Fallback bool `json:"fallback,omitempty" example:"true"`
	// Attempt cap for the fallback walk (0 = full sequence).
	// example: 3
	MaxRetries int `json:"max_retries,omitempty" example:"3"`
}

// LoadResponse describes a ready engine slot.
type LoadResponse struct {
	// Cache key addressing the loaded slot.
	// example: mid-coding
	Key string `json:"key" example:"mid-coding"`
	// Identifier of the model backing the engine.
	// example: tinyllama-q4
	Model string `json:"model" example:"tinyllama-q4"`
	// Tier the engine was loaded at (may be lower than requested when
	// fallback demoted).
	// example: mid
	Tier string `json:"tier" example:"mid"`
	// Domain scope, empty for generic loads.
	// example: coding
	Domain string `json:"domain,omitempty" example:"coding"`
	// Lifecycle state of the cache entry.
	// example: ready
	State string `json:"state" example:"ready"`
	// True when the request was served from cache without a provider call.
	// example: false
	CacheHit bool `json:"cache_hit" example:"false"`
	// Wall time the load took in milliseconds.
	// example: 1840
	DurationMs int64 `json:"duration_ms" example:"1840"`
	// Sampling configuration attached to the engine.
	Generation GenerationConfig `json:"generation"`
}

// BatchRequest fans out several loads under a concurrency cap.
type BatchRequest struct {
	Requests []LoadRequest `json:"requests"`
	// Maximum concurrent loads per window (0 = 1).
	// example: 2
	MaxConcurrency int `json:"max_concurrency,omitempty" example:"2"`
}

// BatchFailure records one isolated per-request failure.
type BatchFailure struct {
	// Cache key of the failed request.
	// example: high-default
	Key string `json:"key" example:"high-default"`
	// Error message.
	Error string `json:"error"`
}

// BatchResponse returns successes and failures side by side.
type BatchResponse struct {
	// Identifier for correlating telemetry of this batch.
	// example: 7b8ee3a1-0a52-4f5e-9f52-6e53f7a9c001
	BatchID string `json:"batch_id"`
	Loaded  []LoadResponse `json:"loaded"`
	Failed  []BatchFailure `json:"failed,omitempty"`
}

// DisposeRequest releases one engine slot.
type DisposeRequest struct {
	Tier      string `json:"tier" example:"mid"`
	Domain    string `json:"domain,omitempty" example:"coding"`
	Framework string `json:"framework,omitempty"`
}

// RecreateRequest tears down and rebuilds one engine atomically.
type RecreateRequest struct {
	Tier      string `json:"tier" example:"mid"`
	Domain    string `json:"domain,omitempty"`
	Framework string `json:"framework,omitempty"`
	// When true, poll the provider's resource probe until native
	// resources are confirmed released before creating the replacement.
	// example: true
	VerifyRelease bool `json:"verify_release,omitempty" example:"true"`
}

// ProtectRequest pins a cache key against disposal for a fixed lease.
type ProtectRequest struct {
	// Cache key to protect.
	// example: mid-coding
	Key string `json:"key" example:"mid-coding"`
}

// EntryStatus summarizes one cache entry for /status.
type EntryStatus struct {
	Key       string `json:"key" example:"mid-coding"`
	Model     string `json:"model,omitempty" example:"tinyllama-q4"`
	Tier      string `json:"tier" example:"mid"`
	Domain    string `json:"domain,omitempty" example:"coding"`
	State     string `json:"state" example:"ready"`
	AgeSec    int64  `json:"age_sec" example:"42"`
	LastUsed  int64  `json:"last_used_unix" example:"1700000000"`
	TTLSec    int64  `json:"ttl_sec" example:"600"`
	Protected bool   `json:"protected" example:"false"`
}

// StatusResponse is the orchestrator-wide status report.
type StatusResponse struct {
	Entries []EntryStatus `json:"entries"`
	// True while a global engine recreation is in flight.
	// example: false
	RecreateInProgress bool `json:"recreate_in_progress" example:"false"`
	// Cache keys currently under an active protection lease.
	Protected []string `json:"protected,omitempty"`
	// Last tier a load was requested for.
	// example: mid
	LastTier string `json:"last_tier,omitempty" example:"mid"`
}

// EngineHealth is the health query result for one tier/domain slot.
type EngineHealth struct {
	Tier   string `json:"tier" example:"mid"`
	Domain string `json:"domain,omitempty" example:"coding"`
	// Cache entry state, or "absent" when nothing is loaded.
	// example: ready
	State string `json:"state" example:"ready"`
	// Overall verdict over the accumulated signals.
	// example: true
	Healthy bool `json:"healthy" example:"true"`
	// Fraction of successful loads.
	// example: 0.97
	SuccessRate float64 `json:"success_rate" example:"0.97"`
	// Load failures since the last success.
	// example: 0
	ConsecutiveFailures int `json:"consecutive_failures" example:"0"`
	// Message of the most recent failure, if any.
	LastError string `json:"last_error,omitempty"`
	// Duration of the most recent successful load in milliseconds.
	// example: 1840
	LastLoadMs int64 `json:"last_load_ms" example:"1840"`
	// Model behind the most recent successful load.
	// example: tinyllama-q4
	Model string `json:"model,omitempty" example:"tinyllama-q4"`
	// Unix time of the most recent successful load.
	// example: 1700000000
	LastSuccessUnix int64 `json:"last_success_unix,omitempty" example:"1700000000"`
}

// PerformanceMetrics aggregates counters per tier/domain slot.
type PerformanceMetrics struct {
	Tier        string  `json:"tier" example:"mid"`
	Domain      string  `json:"domain,omitempty"`
	Loads       int     `json:"loads" example:"12"`
	Failures    int     `json:"failures" example:"1"`
	CacheHits   int     `json:"cache_hits" example:"8"`
	AvgLoadMs   int64   `json:"avg_load_ms" example:"2100"`
	Tokens      int     `json:"tokens" example:"4096"`
	SuccessRate float64 `json:"success_rate" example:"0.92"`
}

// SystemCapabilities reports the host environment the orchestrator sees.
type SystemCapabilities struct {
	NumCPU       int  `json:"num_cpu" example:"8"`
	GoMaxProcs   int  `json:"gomaxprocs" example:"8"`
	HeapAllocMB  int  `json:"heap_alloc_mb" example:"512"`
	SysMB        int  `json:"sys_mb" example:"1024"`
	RuntimeBuilt bool `json:"runtime_built" example:"true"`
}
