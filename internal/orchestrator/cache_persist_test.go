package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"engined/pkg/types"
)

func TestLRUMetadataRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lru.json")
	p := &fakeProvider{}
	o, _, _, _ := newTestOrch(t, p, []types.Model{mdl("tiny-1b-q4")}, lowPrefs(), func(c *Config) {
		c.LRUPath = path
	})

	if _, err := o.LoadModel(context.Background(), TierLow, LoadContext{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var data map[string]lruRecord
	if err := json.Unmarshal(b, &data); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	rec, ok := data["low-default"]
	if !ok {
		t.Fatalf("missing low-default record: %+v", data)
	}
	if rec.Model != "tiny-1b-q4" || rec.Tier != "low" || rec.LastUsedUnix == 0 {
		t.Fatalf("record = %+v", rec)
	}

	// A fresh orchestrator picks the hint back up.
	o2, _, _, _ := newTestOrch(t, &fakeProvider{}, []types.Model{mdl("tiny-1b-q4")}, lowPrefs(), func(c *Config) {
		c.LRUPath = path
	})
	if hint, ok := o2.lastUsedHint("low-default"); !ok || hint.Unix() != rec.LastUsedUnix {
		t.Fatalf("hint = %v ok=%v, want restored recency", hint, ok)
	}
}

func TestLRUMetadataMissingFileIsIgnored(t *testing.T) {
	o, _, _, _ := newTestOrch(t, &fakeProvider{}, nil, lowPrefs(), func(c *Config) {
		c.LRUPath = filepath.Join(t.TempDir(), "absent.json")
	})
	if _, ok := o.lastUsedHint("low-default"); ok {
		t.Fatal("no hint expected without a metadata file")
	}
}
