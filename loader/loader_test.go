package loader

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sorenh/cobuf/buffer"
	"github.com/sorenh/cobuf/ident"
)

// probe records the notifications a buffer hands out.
type probe struct {
	buffer.Base
	mu   sync.Mutex
	last buffer.EditNotification
}

func newProbe() *probe {
	return &probe{Base: buffer.Base{
		CollabName: "probe",
		FromIdle:   time.Millisecond,
		FromStart:  5 * time.Millisecond,
	}}
}

func (p *probe) Edit(n buffer.EditNotification) (buffer.EditResponse, error) {
	p.mu.Lock()
	p.last = n
	p.mu.Unlock()
	return buffer.EditResponse{Done: n.Shutdown}, nil
}

func (p *probe) snapshot() buffer.EditNotification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLoadsFileIntoBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := New(path, ident.NewAllocator())
	if err != nil {
		t.Fatal(err)
	}

	b := buffer.New(path)
	p := newProbe()
	b.AddCollaborator(l)
	b.AddCollaborator(p)

	waitFor(t, "load", func() bool {
		return b.ContentSnapshot().Render() == "hello\n"
	})
	waitFor(t, "loaded flag", func() bool {
		return p.snapshot().FullyLoaded
	})

	b.Close()
}

func TestMissingFileLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.txt")

	l, err := New(path, ident.NewAllocator())
	if err != nil {
		t.Fatal(err)
	}

	b := buffer.New(path)
	p := newProbe()
	b.AddCollaborator(l)
	b.AddCollaborator(p)

	waitFor(t, "loaded flag", func() bool {
		return p.snapshot().FullyLoaded
	})
	if got := b.ContentSnapshot().Render(); got != "" {
		t.Errorf("expected empty document, was %q", got)
	}

	b.Close()
}

func TestReportsOutsideModification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := New(path, ident.NewAllocator())
	if err != nil {
		t.Fatal(err)
	}

	b := buffer.New(path)
	p := newProbe()
	b.AddCollaborator(l)
	b.AddCollaborator(p)

	waitFor(t, "loaded flag", func() bool {
		return p.snapshot().FullyLoaded
	})

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "file change report", func() bool {
		return p.snapshot().ReferencedFileVersion >= 1
	})

	b.Close()
}
