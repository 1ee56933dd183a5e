package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"engined/pkg/types"
)

func writeGGUF(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeGGUF(t, dir, "tinyllama-1.1b-q4_k_m.gguf")
	writeGGUF(t, dir, "mistral-7b-instruct-q5_k_m.gguf")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	models, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("models = %d, want 2", len(models))
	}
	for _, m := range models {
		if filepath.Ext(m.ID) != "" {
			t.Fatalf("id %q should not carry extension", m.ID)
		}
		if m.Quant == "" {
			t.Fatalf("quant not inferred for %q", m.ID)
		}
	}
}

func TestParamSizeB(t *testing.T) {
	cases := map[string]float64{
		"tinyllama-1.1b-q4": 1.1,
		"mistral-7B-chat":   7,
		"phi-2":             0,
		"llama-3-70b":       70,
	}
	for id, want := range cases {
		if got := ParamSizeB(id); got != want {
			t.Fatalf("ParamSizeB(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestSmallAndDomainScore(t *testing.T) {
	c := New(nil, Preferences{})
	if !c.Small("tinyllama-1.1b") {
		t.Fatalf("tinyllama should be small")
	}
	if c.Small("llama-70b") {
		t.Fatalf("70b should not be small")
	}
	if c.DomainScore("starcoder-3b", "coding") <= c.DomainScore("llama-7b", "coding") {
		t.Fatalf("coder model should outscore generic for coding")
	}
}

func TestPreferencesAndPaths(t *testing.T) {
	models := []types.Model{
		{ID: "a", Path: "/m/a.gguf"},
		{ID: "b", Path: "/m/b.gguf"},
	}
	c := New(models, Preferences{
		Tier:   map[string][]string{"low": {"a", "b"}},
		Domain: map[string][]string{"coding": {"b"}},
	})
	if got := c.TierPreference("low"); len(got) != 2 || got[0] != "a" {
		t.Fatalf("tier preference = %v", got)
	}
	if got := c.DomainPreference("coding"); len(got) != 1 || got[0] != "b" {
		t.Fatalf("domain preference = %v", got)
	}
	if p, ok := c.PathFor("b"); !ok || p != "/m/b.gguf" {
		t.Fatalf("PathFor = %q %v", p, ok)
	}
	if _, ok := c.PathFor("missing"); ok {
		t.Fatalf("missing id resolved")
	}
}

func TestGenerationFor(t *testing.T) {
	c := New(nil, Preferences{})
	g := c.GenerationFor("high", "coding")
	if g.MaxTokens != 1024 {
		t.Fatalf("high tier budget = %d", g.MaxTokens)
	}
	if g.Temperature != 0.2 {
		t.Fatalf("coding temperature = %v", g.Temperature)
	}
	if len(g.Stop) == 0 {
		t.Fatalf("coding stop sequences missing")
	}
}
