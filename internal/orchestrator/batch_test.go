package orchestrator

import (
	"context"
	"testing"
	"time"

	"engined/internal/catalog"
	"engined/pkg/types"
)

func domainPrefs() catalog.Preferences {
	return catalog.Preferences{Domain: map[string][]string{
		"alpha": {"alpha-3b-q4"},
		"beta":  {"beta-3b-q4"},
		"gamma": {"gamma-3b-q4"},
		"delta": {"delta-3b-q4"},
		"eps":   {"eps-3b-q4"},
	}}
}

func domainModels() []types.Model {
	return []types.Model{
		mdl("alpha-3b-q4"), mdl("beta-3b-q4"), mdl("gamma-3b-q4"),
		mdl("delta-3b-q4"), mdl("eps-3b-q4"),
	}
}

func TestLoadBatchRespectsConcurrencyCap(t *testing.T) {
	p := &fakeProvider{createDelay: 30 * time.Millisecond}
	o, _, _, _ := newTestOrch(t, p, domainModels(), domainPrefs(), nil)

	reqs := []LoadRequest{
		{Tier: TierLow, Context: LoadContext{Domain: "alpha"}},
		{Tier: TierLow, Context: LoadContext{Domain: "beta"}},
		{Tier: TierLow, Context: LoadContext{Domain: "gamma"}},
		{Tier: TierLow, Context: LoadContext{Domain: "delta"}},
		{Tier: TierLow, Context: LoadContext{Domain: "eps"}},
	}
	res := o.LoadBatch(context.Background(), reqs, 2)

	if len(res.Failed) != 0 {
		t.Fatalf("failures: %+v", res.Failed)
	}
	if len(res.Loaded) != 5 {
		t.Fatalf("loaded = %d, want 5", len(res.Loaded))
	}
	p.mu.Lock()
	max := p.maxInflight
	p.mu.Unlock()
	if max > 2 {
		t.Fatalf("max in-flight creations = %d, want <= 2", max)
	}
	if res.BatchID == "" {
		t.Fatal("batch id must be set")
	}
}

func TestLoadBatchPriorityOrdering(t *testing.T) {
	p := &fakeProvider{}
	o, _, _, _ := newTestOrch(t, p, domainModels(), domainPrefs(), nil)

	reqs := []LoadRequest{
		{Tier: TierLow, Context: LoadContext{Domain: "alpha"}, Priority: PriorityLow},
		{Tier: TierLow, Context: LoadContext{Domain: "beta"}, Priority: PriorityHigh},
		{Tier: TierLow, Context: LoadContext{Domain: "gamma"}, Priority: PriorityMedium},
	}
	res := o.LoadBatch(context.Background(), reqs, 1)
	if len(res.Failed) != 0 {
		t.Fatalf("failures: %+v", res.Failed)
	}

	order := p.createOrder()
	if len(order) != 3 {
		t.Fatalf("creations = %d, want 3", len(order))
	}
	want := []string{"beta-3b-q4", "gamma-3b-q4", "alpha-3b-q4"}
	for i, w := range want {
		if order[i] != "/models/"+w+".gguf" {
			t.Fatalf("creation %d = %q, want %q", i, order[i], w)
		}
	}
}

func TestLoadBatchIsolatesFailures(t *testing.T) {
	p := &fakeProvider{failPath: func(path string) error {
		if path == "/models/beta-3b-q4.gguf" {
			return NewTimeout("beta-3b-q4", time.Second)
		}
		return nil
	}}
	o, _, _, _ := newTestOrch(t, p, domainModels(), domainPrefs(), nil)

	reqs := []LoadRequest{
		{Tier: TierLow, Context: LoadContext{Domain: "alpha"}},
		{Tier: TierLow, Context: LoadContext{Domain: "beta"}},
		{Tier: TierLow, Context: LoadContext{Domain: "gamma"}},
	}
	res := o.LoadBatch(context.Background(), reqs, 1)

	if len(res.Loaded) != 2 {
		t.Fatalf("loaded = %d, want 2", len(res.Loaded))
	}
	ferr, ok := res.Failed["low-beta"]
	if !ok {
		t.Fatalf("expected failure for low-beta, got %+v", res.Failed)
	}
	if !IsTimeout(ferr) {
		t.Fatalf("failure class mismatch: %v", ferr)
	}
}

func TestLoadBatchStopSignalAbortsRemainder(t *testing.T) {
	p := &fakeProvider{}
	o, pub, _, exec := newTestOrch(t, p, domainModels(), domainPrefs(), nil)

	exec.SetStopRequested(true)
	reqs := []LoadRequest{
		{Tier: TierLow, Context: LoadContext{Domain: "alpha"}},
		{Tier: TierLow, Context: LoadContext{Domain: "beta"}},
	}
	res := o.LoadBatch(context.Background(), reqs, 1)

	if len(res.Loaded) != 0 {
		t.Fatalf("loaded = %d, want 0", len(res.Loaded))
	}
	if len(res.Failed) != 2 {
		t.Fatalf("failed = %d, want 2", len(res.Failed))
	}
	for key, err := range res.Failed {
		if !IsCancelled(err) {
			t.Fatalf("failure for %s is not a cancellation: %v", key, err)
		}
	}
	if pub.Count("batch_abort") != 1 {
		t.Fatal("expected a batch_abort event")
	}
}

func TestMemThresholdPicksMostDemandingTier(t *testing.T) {
	p := &fakeProvider{}
	o, _, _, _ := newTestOrch(t, p, nil, catalog.Preferences{}, func(c *Config) {
		c.MemThresholdMB = map[Tier]int{TierLow: 100, TierHigh: 900}
	})

	reqs := []LoadRequest{{Tier: TierLow}, {Tier: TierHigh}}
	if got := o.memThreshold(reqs); got != 900 {
		t.Fatalf("threshold = %d, want the high tier's 900", got)
	}
	if got := o.memThreshold([]LoadRequest{{Tier: TierLow}}); got != 100 {
		t.Fatalf("threshold = %d, want 100", got)
	}
	// Unset tiers fall back to package defaults.
	if got := o.memThreshold([]LoadRequest{{Tier: TierMid}}); got != defaultMemThresholds()[TierMid] {
		t.Fatalf("threshold = %d, want the mid default", got)
	}
}

func TestLoadBatchEmpty(t *testing.T) {
	p := &fakeProvider{}
	o, _, _, _ := newTestOrch(t, p, nil, catalog.Preferences{}, nil)
	res := o.LoadBatch(context.Background(), nil, 4)
	if len(res.Loaded) != 0 || len(res.Failed) != 0 {
		t.Fatalf("empty batch should be a no-op: %+v", res)
	}
}
