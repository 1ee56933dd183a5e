package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"engined/internal/catalog"
	"engined/pkg/types"
)

func tieredPrefs() catalog.Preferences {
	return catalog.Preferences{Tier: map[string][]string{
		"low":  {"tiny-1b-q4"},
		"mid":  {"mid-7b-q4"},
		"high": {"big-70b-q4"},
	}}
}

func tieredModels() []types.Model {
	return []types.Model{mdl("tiny-1b-q4"), mdl("mid-7b-q4"), mdl("big-70b-q4")}
}

func TestFallbackDemotesThroughSequence(t *testing.T) {
	p := &fakeProvider{failPath: func(path string) error {
		if strings.Contains(path, "70b") || strings.Contains(path, "7b") {
			return errors.New("mmap failed: cannot allocate")
		}
		return nil
	}}
	o, pub, _, _ := newTestOrch(t, p, tieredModels(), tieredPrefs(), nil)

	h, err := o.LoadWithFallback(context.Background(), TierHigh, LoadContext{}, 0)
	if err != nil {
		t.Fatalf("fallback load: %v", err)
	}
	if h.ModelID() != "tiny-1b-q4" {
		t.Fatalf("served model = %q, want the low-tier model", h.ModelID())
	}
	if h.Tier() != TierLow {
		t.Fatalf("served tier = %s, want low", h.Tier())
	}
	if got := pub.Count("fallback_demote"); got != 2 {
		t.Fatalf("fallback_demote events = %d, want 2", got)
	}
	if pub.Count("fallback_success") != 1 {
		t.Fatal("expected a fallback_success event after demotion")
	}
}

func TestFallbackExhaustionWrapsLastError(t *testing.T) {
	p := &fakeProvider{failPath: func(string) error {
		return errors.New("mmap failed: cannot allocate")
	}}
	o, _, _, _ := newTestOrch(t, p, tieredModels(), tieredPrefs(), nil)

	_, err := o.LoadWithFallback(context.Background(), TierHigh, LoadContext{}, 0)
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if !strings.Contains(err.Error(), "high->mid->low") {
		t.Fatalf("error should carry the tier trail: %v", err)
	}
	if ClassOf(err) != ClassMemory {
		t.Fatalf("class = %s, want memory from the wrapped failure", ClassOf(err))
	}
}

func TestFallbackHonorsMaxRetries(t *testing.T) {
	p := &fakeProvider{failPath: func(string) error {
		return errors.New("device busy")
	}}
	o, pub, _, _ := newTestOrch(t, p, tieredModels(), tieredPrefs(), nil)

	_, err := o.LoadWithFallback(context.Background(), TierHigh, LoadContext{}, 2)
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if !strings.Contains(err.Error(), "high->mid") || strings.Contains(err.Error(), "low") {
		t.Fatalf("trail should stop after two attempts: %v", err)
	}
	if got := pub.Count("fallback_demote"); got != 1 {
		t.Fatalf("fallback_demote events = %d, want 1", got)
	}
}

func TestFallbackStopSignalAborts(t *testing.T) {
	p := &fakeProvider{}
	o, _, _, exec := newTestOrch(t, p, tieredModels(), tieredPrefs(), nil)

	exec.SetStopRequested(true)
	_, err := o.LoadWithFallback(context.Background(), TierHigh, LoadContext{}, 0)
	if !IsCancelled(err) {
		t.Fatalf("IsCancelled = false for %v", err)
	}
	if creates, _ := p.counts(); creates != 0 {
		t.Fatalf("creates = %d, want 0", creates)
	}
}

func TestFallbackLowTierHasNoDowngrade(t *testing.T) {
	p := &fakeProvider{failPath: func(string) error {
		return errors.New("boom")
	}}
	o, pub, _, _ := newTestOrch(t, p, tieredModels(), tieredPrefs(), nil)

	_, err := o.LoadWithFallback(context.Background(), TierLow, LoadContext{}, 0)
	if err == nil {
		t.Fatal("expected failure")
	}
	if pub.Count("fallback_demote") != 0 {
		t.Fatal("low tier has no further tier to demote to")
	}
}
