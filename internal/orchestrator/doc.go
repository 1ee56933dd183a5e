// Package orchestrator acquires, caches, validates, protects, and
// disposes of expensive inference-engine instances under concurrent,
// failure-prone conditions. It is structured into small files by concern:
//
//   - orchestrator.go: core Orchestrator type, constructor, Close.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: tiers, priorities, cache keys/entries, engine handles, leases.
//   - errors.go: error taxonomy, classification and Is* helpers.
//   - cache.go: per-key TTL cache, cooperative key locks, cleanup sweep.
//   - cache_persist.go: LRU metadata persistence across restarts.
//   - selectmodel.go: preference-list and size-heuristic model selection.
//   - load.go: LoadModel pipeline, single-flight, timeout-raced creation.
//   - health.go: structural/functional engine validation.
//   - lifecycle.go: protection leases, disposal, atomic recreation.
//   - fallback.go: tier-downgrade retry chain.
//   - batch.go: priority-ordered windowed batch loads.
//   - metrics.go: per-slot counters and the health/perf query surface.
//   - prom.go: Prometheus collectors.
//   - events.go: telemetry publisher interface; eventpub_memory.go for tests.
//   - execstate.go: external execution-state flags gating destructive ops.
//   - service.go: DTO-facing methods consumed by the HTTP layer.
//
// Ownership: the orchestrator exclusively owns every engine handle.
// Callers receive references and may run completions, but creation,
// disposal and recreation go through this package only, serialized by
// per-key locks, disposal locks and the global recreation flag.
package orchestrator
