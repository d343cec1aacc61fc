package buffer

import (
	"github.com/sorenh/cobuf/astring"
)

// Listener is a registration for the buffer's command stream. Close
// unregisters it; once Close returns, no callback is running and none
// will run again.
type Listener struct {
	b  *Buffer
	id int

	update func(astring.CommandSet)
}

// Listen registers for the buffer's command stream. The initial
// callback runs before any update callback and receives the current
// document value; together they observe every edit exactly once.
//
// Both callbacks run with the buffer locked and must not block. Stage
// work through a queue if it might.
func (b *Buffer) Listen(initial func(astring.AnnotatedString), update func(astring.CommandSet)) *Listener {
	b.mu.Lock()
	defer b.mu.Unlock()

	if initial != nil {
		initial(b.state.Content)
	}

	l := &Listener{b: b, id: b.listenerHigh, update: update}
	b.listenerHigh++
	b.listeners[l.id] = l
	return l
}

// Close removes the listener from the buffer.
func (l *Listener) Close() {
	l.b.mu.Lock()
	defer l.b.mu.Unlock()
	delete(l.b.listeners, l.id)
}
