// Package buffer coordinates collaborators editing a shared document.
// Each collaborator sees a consistent snapshot stream and hands back
// command sets which the buffer integrates one at a time.
package buffer

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sorenh/cobuf/astring"
	"github.com/sorenh/cobuf/queue"
)

var (
	bufferLogs = false
)

// EnableLogs turns on logs for some things in this package.
// Just for debugging.
func EnableLogs() {
	bufferLogs = true
}

func bufferLog(name string, format string, args ...any) {
	if bufferLogs {
		log.Printf("[%s] "+format, append([]any{name}, args...)...)
	}
}

// Buffer owns one document and fans it out to collaborators. All
// integration is serialized through the buffer; collaborators never
// see a half-applied command set.
type Buffer struct {
	name string

	mu       sync.Mutex
	wake     chan struct{} // closed and replaced on every state change
	state    EditNotification
	version  uint64
	updating bool
	lastUsed time.Time
	closed   bool

	collaborators  []Collaborator
	respondents    map[Collaborator]struct{}
	done           map[Collaborator]struct{}
	declaredNoEdit map[Collaborator]struct{}

	listeners    map[int]*Listener
	listenerHigh int

	grp    errgroup.Group
	runCtx context.Context
	cancel context.CancelFunc
}

// New builds an empty buffer. The name shows up in logs and profile
// output; conventionally it is the filename being edited.
func New(name string) *Buffer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Buffer{
		name:           name,
		wake:           make(chan struct{}),
		state:          EditNotification{Content: astring.New()},
		version:        1,
		lastUsed:       time.Now(),
		respondents:    make(map[Collaborator]struct{}),
		done:           make(map[Collaborator]struct{}),
		declaredNoEdit: make(map[Collaborator]struct{}),
		listeners:      make(map[int]*Listener),
		runCtx:         ctx,
		cancel:         cancel,
	}
}

func (b *Buffer) Name() string { return b.name }

// Version returns the current state version. It only ever goes up.
func (b *Buffer) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// ContentSnapshot returns the current document value. The value is
// immutable; holding it does not block further edits.
func (b *Buffer) ContentSnapshot() astring.AnnotatedString {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Content
}

// AddCollaborator registers a collaborator and starts its tasks. The
// concrete shape decides how the buffer drives it; a value satisfying
// several interfaces is taken in the order async, command, sync.
func (b *Buffer) AddCollaborator(c Collaborator) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		panic("collaborator added to closed buffer")
	}
	b.collaborators = append(b.collaborators, c)
	switch c.(type) {
	case AsyncCollaborator, SyncCollaborator:
		b.respondents[c] = struct{}{}
	}
	b.mu.Unlock()

	switch t := c.(type) {
	case AsyncCollaborator:
		b.grp.Go(func() error { return b.runPush(t) })
		b.grp.Go(func() error { return b.runPull(t) })
	case CommandCollaborator:
		b.runCommands(t)
	case SyncCollaborator:
		b.grp.Go(func() error { return b.runSync(t) })
	default:
		panic("collaborator satisfies no known shape")
	}
}

// PushChanges integrates locally-authored commands, e.g. from the
// process that owns the buffer rather than from a collaborator.
func (b *Buffer) PushChanges(cmds astring.CommandSet) {
	if len(cmds) == 0 {
		return
	}
	b.updateState(nil, true, cmds, func(n *EditNotification) {
		n.Content = n.Content.Integrate(cmds)
	})
}

// Close asks every collaborator to finish and waits for them. The
// final notification each push loop delivers has Shutdown set; it is
// only sent once every live respondent has declared it holds no more
// edits for the current version.
func (b *Buffer) Close() error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		b.broadcastLocked()
	}
	b.mu.Unlock()

	b.cancel()
	err := b.grp.Wait()
	bufferLog(b.name, "closed, err=%v", err)
	return err
}

// broadcastLocked wakes every waiter. Must be called under mu.
func (b *Buffer) broadcastLocked() {
	close(b.wake)
	b.wake = make(chan struct{})
}

// waitLocked releases mu until the next broadcast.
func (b *Buffer) waitLocked() {
	ch := b.wake
	b.mu.Unlock()
	<-ch
	b.mu.Lock()
}

// waitTimeoutLocked releases mu until the next broadcast or until d
// elapses, whichever comes first.
func (b *Buffer) waitTimeoutLocked(d time.Duration) {
	ch := b.wake
	b.mu.Unlock()
	t := time.NewTimer(d)
	select {
	case <-ch:
	case <-t.C:
	}
	t.Stop()
	b.mu.Lock()
}

// quiescentLocked reports whether shutdown can complete: the buffer is
// closed and every respondent is either done or has declared it has no
// edits for the current version. Must be called under mu.
func (b *Buffer) quiescentLocked() bool {
	if !b.closed {
		return false
	}
	for c := range b.respondents {
		if _, ok := b.declaredNoEdit[c]; ok {
			continue
		}
		if _, ok := b.done[c]; ok {
			continue
		}
		return false
	}
	return true
}

// nextNotification blocks until the collaborator should see a new
// snapshot, then returns it and records the delivered version in
// processed. A notification with Shutdown set is the collaborator's
// last; it is delivered once the buffer is quiescent.
//
// The very first notification goes out immediately. Later ones are
// debounced: held until the document has been idle for DelayFromIdle,
// but never longer than DelayFromStart past the moment this
// collaborator first saw the unprocessed change.
func (b *Buffer) nextNotification(c Collaborator, processed *uint64) EditNotification {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.quiescentLocked() {
			*processed = b.version
			n := b.state
			n.Shutdown = true
			c.Marks().MarkRequest()
			return n
		}
		if b.version != *processed {
			break
		}
		b.waitLocked()
	}

	if *processed != 0 {
		firstSaw := time.Now()
		for !b.closed {
			now := time.Now()
			d := c.DelayFromIdle() - now.Sub(b.lastUsed)
			if r := c.DelayFromStart() - now.Sub(firstSaw); r < d {
				d = r
			}
			if d <= 0 {
				break
			}
			b.waitTimeoutLocked(d)
		}
	}

	*processed = b.version
	n := b.state
	c.Marks().MarkRequest()
	return n
}

// updateState serializes a state transition: wait for any in-flight
// update to commit, run fn against a private copy outside the lock,
// then commit the copy as the next version. Listeners observe cmds in
// the same critical section as the commit, just ahead of it: a callback
// reading buffer state still sees the pre-integration snapshot, and a
// listener joining later sees either the commands or a snapshot that
// already includes them.
func (b *Buffer) updateState(c Collaborator, used bool, cmds astring.CommandSet, fn func(*EditNotification)) {
	b.mu.Lock()
	for b.updating {
		b.waitLocked()
	}
	b.updating = true
	next := b.state
	b.mu.Unlock()

	fn(&next)

	b.mu.Lock()
	b.updating = false
	if len(cmds) != 0 {
		for _, l := range b.listeners {
			l.update(cmds)
		}
	}
	b.state = next
	b.version++
	b.declaredNoEdit = make(map[Collaborator]struct{})
	if used {
		b.lastUsed = time.Now()
	}
	if c != nil {
		c.Marks().MarkChange()
	}
	b.broadcastLocked()
	b.mu.Unlock()
}

// sinkResponse folds a collaborator response into the buffer. It
// returns false once the collaborator is terminal.
func (b *Buffer) sinkResponse(c Collaborator, resp EditResponse) bool {
	c.Marks().MarkResponse()

	if resp.hasUpdates() {
		used := resp.BecomeUsed || len(resp.ContentUpdates) != 0
		b.updateState(c, used, resp.ContentUpdates, func(n *EditNotification) {
			if len(resp.ContentUpdates) != 0 {
				n.Content = n.Content.Integrate(resp.ContentUpdates)
			}
			if resp.BecomeLoaded {
				n.FullyLoaded = true
			}
			if resp.ReferencedFileChanged {
				n.ReferencedFileVersion++
			}
		})
	} else {
		b.mu.Lock()
		b.declaredNoEdit[c] = struct{}{}
		if resp.BecomeUsed {
			b.lastUsed = time.Now()
		}
		b.broadcastLocked()
		b.mu.Unlock()
	}

	if resp.Done {
		b.markDone(c)
		return false
	}
	return true
}

func (b *Buffer) markDone(c Collaborator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done[c] = struct{}{}
	b.broadcastLocked()
}

func (b *Buffer) failCollaborator(c Collaborator, err error) {
	bufferLog(b.name, "collaborator %s failed: %v", c.Name(), err)
	b.markDone(c)
}

func (b *Buffer) runPush(c AsyncCollaborator) error {
	var processed uint64
	for {
		n := b.nextNotification(c, &processed)
		if err := c.Push(n); err != nil {
			b.failCollaborator(c, err)
			return nil
		}
		if n.Shutdown {
			return nil
		}
	}
}

func (b *Buffer) runPull(c AsyncCollaborator) error {
	for {
		resp, err := c.Pull()
		if err != nil {
			b.failCollaborator(c, err)
			return nil
		}
		if !b.sinkResponse(c, resp) {
			return nil
		}
	}
}

func (b *Buffer) runSync(c SyncCollaborator) error {
	var processed uint64
	for {
		n := b.nextNotification(c, &processed)
		resp, err := c.Edit(n)
		if err != nil {
			b.failCollaborator(c, err)
			return nil
		}
		cont := b.sinkResponse(c, resp)
		if n.Shutdown || !cont {
			return nil
		}
	}
}

// runCommands drives a command-stream collaborator. Published command
// sets are staged through a queue so the listener callback never blocks
// on the collaborator's Push.
func (b *Buffer) runCommands(c CommandCollaborator) {
	q := queue.New[astring.CommandSet]()
	sub := q.Join(b.runCtx)
	l := b.Listen(nil, func(cmds astring.CommandSet) {
		q.Push(cmds)
	})

	b.grp.Go(func() error {
		defer l.Close()
		for cmds := range sub.Iter() {
			if err := c.Push(cmds); err != nil {
				b.failCollaborator(c, err)
				return nil
			}
		}
		return nil
	})

	b.grp.Go(func() error {
		for {
			cmds, err := c.Pull(b.runCtx)
			if err != nil {
				if b.runCtx.Err() == nil {
					b.failCollaborator(c, err)
				}
				return nil
			}
			c.Marks().MarkResponse()
			if len(cmds) != 0 {
				b.updateState(c, true, cmds, func(n *EditNotification) {
					n.Content = n.Content.Integrate(cmds)
				})
			}
		}
	})
}
