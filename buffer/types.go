package buffer

import (
	"context"
	"time"

	"github.com/sorenh/cobuf/astring"
)

// EditNotification is the envelope the buffer pushes to collaborators:
// the current document snapshot plus lifecycle flags.
type EditNotification struct {
	Content               astring.AnnotatedString
	FullyLoaded           bool
	ReferencedFileVersion uint64
	Shutdown              bool
}

// EditResponse is the envelope a collaborator hands back: edits to
// integrate plus lifecycle flags. Done marks the collaborator as
// terminal: the buffer stops pulling from it and calls a sync
// collaborator no more. An async collaborator's Push side still
// receives notifications, ending with the Shutdown one.
type EditResponse struct {
	ContentUpdates        astring.CommandSet
	BecomeLoaded          bool
	BecomeUsed            bool
	ReferencedFileChanged bool
	Done                  bool
}

func (r EditResponse) hasUpdates() bool {
	return r.BecomeLoaded || r.ReferencedFileChanged || len(r.ContentUpdates) != 0
}

// Collaborator is the surface shared by every collaborator shape.
// The two delays control push debouncing: the buffer holds back a new
// snapshot until the document has been idle for DelayFromIdle, but
// never longer than DelayFromStart after the first unseen change.
type Collaborator interface {
	Name() string
	DelayFromIdle() time.Duration
	DelayFromStart() time.Duration
	Marks() *Marks
}

// AsyncCollaborator consumes snapshots and produces responses on its
// own schedule. The buffer drives Push and Pull from two separate
// tasks; both may block. After a Shutdown notification arrives via
// Push, Pull must eventually return a response with Done set.
type AsyncCollaborator interface {
	Collaborator
	Push(EditNotification) error
	Pull() (EditResponse, error)
}

// CommandCollaborator mirrors the raw command stream instead of
// snapshots: Push receives every CommandSet published to the buffer,
// Pull produces sets to integrate. Pull must return once ctx is done.
type CommandCollaborator interface {
	Collaborator
	Push(astring.CommandSet) error
	Pull(ctx context.Context) (astring.CommandSet, error)
}

// SyncCollaborator handles one notification per call, request/response.
type SyncCollaborator interface {
	Collaborator
	Edit(EditNotification) (EditResponse, error)
}

// Base carries the identity and debounce configuration of a
// collaborator; embed it to satisfy the Collaborator interface.
type Base struct {
	CollabName string
	FromIdle   time.Duration
	FromStart  time.Duration

	marks Marks
}

func (b *Base) Name() string                  { return b.CollabName }
func (b *Base) DelayFromIdle() time.Duration  { return b.FromIdle }
func (b *Base) DelayFromStart() time.Duration { return b.FromStart }
func (b *Base) Marks() *Marks                 { return &b.marks }
