package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"engined/internal/catalog"
	"engined/internal/provider"
	"engined/pkg/types"
)

// fakeSession fails completions while the shared failProbe flag is set.
type fakeSession struct {
	failProbe *atomic.Bool
	closed    atomic.Bool
}

func (s *fakeSession) Complete(ctx context.Context, _ string, _ provider.Params) (string, error) {
	if s.failProbe != nil && s.failProbe.Load() {
		return "", errors.New("probe refused")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "ok", nil
}

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	return nil
}

// fakeProvider counts successful creations and disposals, tracks the
// maximum number of concurrent creations, and records creation order.
type fakeProvider struct {
	mu          sync.Mutex
	creates     int
	disposes    int
	inflight    int
	maxInflight int
	order       []string

	createDelay time.Duration
	failPath    func(path string) error
	failProbe   atomic.Bool
	disposeErr  error
	live        atomic.Int64
}

func (p *fakeProvider) setDisposeErr(err error) {
	p.mu.Lock()
	p.disposeErr = err
	p.mu.Unlock()
}

func (p *fakeProvider) Create(ctx context.Context, path string, opts provider.Options) (provider.Session, error) {
	if opts.Progress != nil {
		if err := opts.Progress(0); err != nil {
			return nil, err
		}
	}
	p.mu.Lock()
	if p.failPath != nil {
		if err := p.failPath(path); err != nil {
			p.mu.Unlock()
			return nil, err
		}
	}
	p.creates++
	p.inflight++
	if p.inflight > p.maxInflight {
		p.maxInflight = p.inflight
	}
	p.order = append(p.order, path)
	delay := p.createDelay
	p.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}

	p.mu.Lock()
	p.inflight--
	p.mu.Unlock()
	p.live.Add(1)
	return &fakeSession{failProbe: &p.failProbe}, nil
}

func (p *fakeProvider) Dispose(_ context.Context, s provider.Session) error {
	p.mu.Lock()
	p.disposes++
	err := p.disposeErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if s != nil {
		_ = s.Close()
		p.live.Add(-1)
	}
	return nil
}

func (p *fakeProvider) LiveResources() int { return int(p.live.Load()) }

func (p *fakeProvider) counts() (creates, disposes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creates, p.disposes
}

func (p *fakeProvider) createOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// fakeClock drives TTL and lease expiry deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func mdl(id string) types.Model {
	return types.Model{ID: id, Name: id, Path: "/models/" + id + ".gguf"}
}

// newTestOrch builds an orchestrator with short settle/pacing delays, the
// janitor disabled, and a controllable clock.
func newTestOrch(t *testing.T, p *fakeProvider, models []types.Model, prefs catalog.Preferences, mut func(*Config)) (*Orchestrator, *MemoryPublisher, *fakeClock, *StaticExecState) {
	t.Helper()
	pub := NewMemoryPublisher()
	exec := NewStaticExecState()
	cfg := Config{
		Source:         catalog.New(models, prefs),
		Provider:       p,
		Exec:           exec,
		Publisher:      pub,
		SettleDelay:    time.Millisecond,
		WindowPacing:   time.Millisecond,
		PressurePacing: time.Millisecond,
		ProbeTimeout:   200 * time.Millisecond,
		JanitorEvery:   -1,
	}
	if mut != nil {
		mut(&cfg)
	}
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	clk := newFakeClock()
	o.nowFn = clk.Now
	t.Cleanup(func() { _ = o.Close() })
	return o, pub, clk, exec
}
