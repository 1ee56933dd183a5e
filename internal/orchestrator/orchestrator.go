package orchestrator

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Orchestrator owns every engine handle and all mutable registries:
// cache entries, key locks, disposal locks, protection leases. One value
// per process or test; nothing lives in package globals.
type Orchestrator struct {
	cfg Config

	mu        sync.Mutex
	entries   map[string]*cacheEntry
	keyLocks  map[string]chan struct{}
	disposing map[string]bool
	leases    map[string]time.Time
	// orphans holds handles evicted while their key was under a lease;
	// disposal waits until the lease is released or expires.
	orphans  map[string][]*EngineHandle
	lastTier Tier
	lastKey  string
	stats    map[string]*slotStats
	lruMeta  map[string]lruRecord

	recreating atomic.Bool
	closed     atomic.Bool

	janitorStop chan struct{}
	janitorDone chan struct{}

	// nowFn is swapped by tests to drive TTL and lease expiry.
	nowFn func() time.Time
}

// New constructs an Orchestrator, applying package defaults for unset
// config fields and starting the cleanup janitor unless disabled.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Source == nil {
		return nil, errors.New("orchestrator: Source is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("orchestrator: Provider is required")
	}
	cfg.applyDefaults()
	o := &Orchestrator{
		cfg:       cfg,
		entries:   make(map[string]*cacheEntry),
		keyLocks:  make(map[string]chan struct{}),
		disposing: make(map[string]bool),
		leases:    make(map[string]time.Time),
		orphans:   make(map[string][]*EngineHandle),
		stats:     make(map[string]*slotStats),
		lruMeta:   make(map[string]lruRecord),
		nowFn:     time.Now,
	}
	o.loadLRUMetadata()
	if cfg.JanitorEvery > 0 {
		o.janitorStop = make(chan struct{})
		o.janitorDone = make(chan struct{})
		go o.janitor()
	}
	return o, nil
}

// Close stops the janitor, persists LRU metadata, and disposes every
// remaining engine. Safe to call once; later calls are no-ops.
func (o *Orchestrator) Close() error {
	if o.closed.Swap(true) {
		return nil
	}
	if o.janitorStop != nil {
		close(o.janitorStop)
		<-o.janitorDone
	}
	o.saveLRUMetadata()

	o.mu.Lock()
	var handles []*EngineHandle
	for key, ent := range o.entries {
		if ent.handle != nil {
			handles = append(handles, ent.handle)
		}
		delete(o.entries, key)
	}
	for key, hs := range o.orphans {
		handles = append(handles, hs...)
		delete(o.orphans, key)
	}
	o.mu.Unlock()

	var first error
	for _, h := range handles {
		if h.disposed.Swap(true) {
			continue
		}
		if err := o.cfg.Provider.Dispose(context.Background(), h.sess); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Ready reports whether the orchestrator can accept load requests.
func (o *Orchestrator) Ready() bool { return !o.closed.Load() }

func (o *Orchestrator) now() time.Time { return o.nowFn() }

// sleep pauses for d, returning early if ctx is cancelled.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// execActive reports whether the surrounding framework holds the engine
// in use; destructive operations bail while any flag is set.
func (o *Orchestrator) execActive() bool {
	e := o.cfg.Exec
	return e.Running() || e.Paused() || e.LoadingModel()
}

func (o *Orchestrator) publish(name, key string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	o.cfg.Publisher.Publish(Event{Name: name, Key: key, Fields: fields})
}

// heapAllocMB approximates current memory usage for pressure checks and
// error enrichment.
func heapAllocMB() int {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int(ms.HeapAlloc / (1024 * 1024))
}

func (o *Orchestrator) janitor() {
	defer close(o.janitorDone)
	t := time.NewTicker(o.cfg.JanitorEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			o.Cleanup()
		case <-o.janitorStop:
			return
		}
	}
}
