package buffer

import (
	"fmt"
	"sync"
	"time"
)

// profileWindow is how far back ProfileData reports activity.
const profileWindow = 5 * time.Second

// Marks records the most recent activity timestamps of a collaborator.
// All methods are safe for concurrent use.
type Marks struct {
	mu       sync.Mutex
	change   time.Time
	request  time.Time
	response time.Time
}

// MarkChange records that the collaborator's edits were committed.
func (m *Marks) MarkChange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.change = time.Now()
}

// MarkRequest records that a notification was handed to the collaborator.
func (m *Marks) MarkRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.request = time.Now()
}

// MarkResponse records that the collaborator produced a response.
func (m *Marks) MarkResponse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = time.Now()
}

func (m *Marks) snapshot() (change, request, response time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.change, m.request, m.response
}

// ProfileData lists the recent activity of every collaborator: one line
// per event kind (chg, rqst, rsp) whose latest timestamp falls inside
// the reporting window. Only the latest event of each kind is kept.
func (b *Buffer) ProfileData() []string {
	b.mu.Lock()
	collabs := make([]Collaborator, len(b.collaborators))
	copy(collabs, b.collaborators)
	b.mu.Unlock()

	now := time.Now()
	var out []string
	emit := func(c Collaborator, kind string, at time.Time) {
		if at.IsZero() || now.Sub(at) > profileWindow {
			return
		}
		out = append(out, fmt.Sprintf("%s:%s:%s: %s (%s ago)",
			b.name, c.Name(), kind,
			at.Format("15:04:05.000"), now.Sub(at).Round(time.Millisecond)))
	}
	for _, c := range collabs {
		change, request, response := c.Marks().snapshot()
		emit(c, "chg", change)
		emit(c, "rqst", request)
		emit(c, "rsp", response)
	}
	return out
}
