package orchestrator

import (
	"testing"

	"engined/internal/catalog"
	"engined/pkg/types"
)

func selOrch(t *testing.T, models []types.Model, prefs catalog.Preferences) *Orchestrator {
	t.Helper()
	o, _, _, _ := newTestOrch(t, &fakeProvider{}, models, prefs, nil)
	return o
}

func TestSelectModelDomainPreferenceWins(t *testing.T) {
	prefs := catalog.Preferences{
		Tier:   map[string][]string{"mid": {"generic-7b-q4"}},
		Domain: map[string][]string{"coding": {"missing-coder", "coder-7b-q4"}},
	}
	models := []types.Model{mdl("generic-7b-q4"), mdl("coder-7b-q4")}
	o := selOrch(t, models, prefs)

	id, err := o.SelectModel(TierMid, "coding")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	// The first available entry of the domain list wins over the tier list.
	if id != "coder-7b-q4" {
		t.Fatalf("selected %q, want coder-7b-q4", id)
	}
}

func TestSelectModelTierPreferenceFallsBack(t *testing.T) {
	prefs := catalog.Preferences{Tier: map[string][]string{"mid": {"absent-model", "generic-7b-q4"}}}
	o := selOrch(t, []types.Model{mdl("generic-7b-q4")}, prefs)

	id, err := o.SelectModel(TierMid, "coding")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if id != "generic-7b-q4" {
		t.Fatalf("selected %q, want generic-7b-q4", id)
	}
}

func TestSelectModelLowTierNarrowsToSmall(t *testing.T) {
	models := []types.Model{mdl("llama-13b-q4"), mdl("tinyllama-1.1b-q4")}
	o := selOrch(t, models, catalog.Preferences{})

	id, err := o.SelectModel(TierLow, "")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if id != "tinyllama-1.1b-q4" {
		t.Fatalf("selected %q, want the small-marker model", id)
	}
}

func TestSelectModelHeuristicPrefersSmallerWithoutDomain(t *testing.T) {
	models := []types.Model{mdl("llama-13b-q4"), mdl("mistral-7b-q4")}
	o := selOrch(t, models, catalog.Preferences{})

	id, err := o.SelectModel(TierMid, "")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if id != "mistral-7b-q4" {
		t.Fatalf("selected %q, want the smaller model", id)
	}
}

func TestSelectModelHeuristicPrefersDomainScore(t *testing.T) {
	models := []types.Model{mdl("mistral-7b-q4"), mdl("starcoder-7b-q4")}
	o := selOrch(t, models, catalog.Preferences{})

	id, err := o.SelectModel(TierMid, "coding")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if id != "starcoder-7b-q4" {
		t.Fatalf("selected %q, want the code-marked model", id)
	}
}

func TestSelectModelEmpty(t *testing.T) {
	o := selOrch(t, nil, catalog.Preferences{})
	_, err := o.SelectModel(TierHigh, "")
	if !IsModelNotFound(err) {
		t.Fatalf("IsModelNotFound = false for %v", err)
	}
}

func TestCacheKeyComposition(t *testing.T) {
	cases := []struct {
		tier Tier
		lctx LoadContext
		want string
	}{
		{TierLow, LoadContext{}, "low-default"},
		{TierMid, LoadContext{Domain: "coding"}, "mid-coding"},
		{TierHigh, LoadContext{Domain: "math", Framework: "webgpu"}, "high-math-webgpu"},
		{TierLow, LoadContext{Framework: "wasm"}, "low-default-wasm"},
	}
	for _, tc := range cases {
		if got := cacheKey(tc.tier, tc.lctx); got != tc.want {
			t.Fatalf("cacheKey(%s, %+v) = %q, want %q", tc.tier, tc.lctx, got, tc.want)
		}
	}
}
