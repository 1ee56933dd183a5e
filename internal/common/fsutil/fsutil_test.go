package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHomePassthrough(t *testing.T) {
	for _, p := range []string{"", "/abs/path", "relative/path"} {
		got, err := ExpandHome(p)
		if err != nil {
			t.Fatalf("expand %q: %v", p, err)
		}
		if got != p {
			t.Fatalf("expand %q = %q, want unchanged", p, got)
		}
	}
}

func TestExpandHomeTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	got, err := ExpandHome("~/models")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != filepath.Join(home, "models") {
		t.Fatalf("expand = %q", got)
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	if !PathExists(dir) {
		t.Fatalf("expected existing dir")
	}
	if PathExists(filepath.Join(dir, "nope")) {
		t.Fatalf("expected missing path")
	}
}

func TestFileSizeMB(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(p, make([]byte, 2*1024*1024), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := FileSizeMB(p); got != 2 {
		t.Fatalf("size = %d, want 2", got)
	}
	if got := FileSizeMB(filepath.Join(dir, "missing")); got != 0 {
		t.Fatalf("missing size = %d, want 0", got)
	}
}
