package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
remote: ws://example.test/edit
collaborators:
  terminal:
    push_delay_from_idle: 10ms
    push_delay_from_start: 100ms
  linter:
    push_delay_from_idle: 250000000
`

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}

	deep := filepath.Join(root, "src", "pkg")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	doc := filepath.Join(deep, "main.go")

	cfg, found, err := Discover(doc)
	if err != nil {
		t.Fatal(err)
	}
	if found != filepath.Join(root, FileName) {
		t.Errorf("found at %q, expected project root", found)
	}
	if cfg.Remote != "ws://example.test/edit" {
		t.Errorf("bad remote: %q", cfg.Remote)
	}
}

func TestDiscoverMissingIsDefault(t *testing.T) {
	cfg, found, err := Discover(filepath.Join(t.TempDir(), "lonely.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if found != "" {
		t.Errorf("unexpected config at %q", found)
	}
	if cfg.Remote != "" {
		t.Errorf("default config must have no remote")
	}
}

func TestDelays(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	idle, start := cfg.Delays("terminal")
	if idle != 10*time.Millisecond || start != 100*time.Millisecond {
		t.Errorf("bad terminal delays: %v / %v", idle, start)
	}

	// Integer nanoseconds parse too; the unset value falls back.
	idle, start = cfg.Delays("linter")
	if idle != 250*time.Millisecond {
		t.Errorf("bad linter idle delay: %v", idle)
	}
	if start != DefaultDelayFromStart {
		t.Errorf("unset delay must fall back, was %v", start)
	}

	idle, start = cfg.Delays("unknown")
	if idle != DefaultDelayFromIdle || start != DefaultDelayFromStart {
		t.Errorf("unknown collaborator must use defaults: %v / %v", idle, start)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(":\nnot yaml ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("expected a parse error")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	body := "collaborators:\n  x:\n    push_delay_from_idle: soon\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("expected a duration error")
	}
}
