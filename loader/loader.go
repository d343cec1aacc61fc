// Package loader backs a buffer with a file on disk: it feeds the file
// contents in as the initial edit, then watches for outside changes.
package loader

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sorenh/cobuf/astring"
	"github.com/sorenh/cobuf/buffer"
	"github.com/sorenh/cobuf/ident"
)

const (
	// The loader rarely needs fresh snapshots; it only reacts to the
	// watched file, so its debounce can be long.
	DefaultDelayFromIdle  = time.Second
	DefaultDelayFromStart = 5 * time.Second
)

// Loader is a collaborator that loads a file into the buffer once and
// then reports outside modification of that file.
type Loader struct {
	buffer.Base

	path    string
	alloc   *ident.Allocator
	watcher *fsnotify.Watcher

	once     sync.Once
	shutdown chan struct{}
	notes    chan struct{}
	loaded   bool
}

// New builds a loader for path. The file may not exist yet, but its
// directory must: the watch is on the directory, since most editors
// replace files instead of writing into them.
func New(path string, alloc *ident.Allocator) (*Loader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	return &Loader{
		Base: buffer.Base{
			CollabName: "loader",
			FromIdle:   DefaultDelayFromIdle,
			FromStart:  DefaultDelayFromStart,
		},
		path:     abs,
		alloc:    alloc,
		watcher:  w,
		shutdown: make(chan struct{}),
		notes:    make(chan struct{}, 1),
	}, nil
}

// Path returns the absolute path of the backing file.
func (l *Loader) Path() string { return l.path }

// Push acknowledges each notification so the buffer can tell the loader
// holds no pending edits; the actual response comes back through Pull.
func (l *Loader) Push(n buffer.EditNotification) error {
	if n.Shutdown {
		l.once.Do(func() { close(l.shutdown) })
		return nil
	}
	select {
	case l.notes <- struct{}{}:
	default:
	}
	return nil
}

func (l *Loader) Pull() (buffer.EditResponse, error) {
	if !l.loaded {
		l.loaded = true

		data, err := os.ReadFile(l.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.watcher.Close()
			return buffer.EditResponse{}, err
		}

		resp := buffer.EditResponse{BecomeLoaded: true, BecomeUsed: true}
		if len(data) != 0 {
			resp.ContentUpdates = astring.MakeInsert(l.alloc, ident.Begin, ident.End, string(data))
		}
		return resp, nil
	}

	for {
		select {
		case <-l.shutdown:
			l.watcher.Close()
			return buffer.EditResponse{Done: true}, nil

		case <-l.notes:
			return buffer.EditResponse{}, nil

		case ev, ok := <-l.watcher.Events:
			if !ok {
				return buffer.EditResponse{Done: true}, nil
			}
			if l.relevant(ev) {
				return buffer.EditResponse{ReferencedFileChanged: true}, nil
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return buffer.EditResponse{Done: true}, nil
			}
			l.watcher.Close()
			return buffer.EditResponse{}, err
		}
	}
}

func (l *Loader) relevant(ev fsnotify.Event) bool {
	if ev.Name != l.path {
		return false
	}
	return ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) ||
		ev.Op.Has(fsnotify.Rename) || ev.Op.Has(fsnotify.Remove)
}
