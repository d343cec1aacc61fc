package astring

import (
	"github.com/sorenh/cobuf/ident"
)

// Commands derives a command set that rebuilds this value on an empty
// replica in a single Integrate pass. Characters are emitted only after
// both their anchors, so every insert applies. Deleted attributes and
// annotations cannot be derived; their graveyard entries are omitted.
func (s AnnotatedString) Commands() CommandSet {
	out := make(CommandSet, 0, s.chars.Len())

	for id, attr := range s.attrs.Iter() {
		a := attr
		out = append(out, Command{ID: id, DeclAttribute: &a})
	}

	// Anchors may sit later in the chain than the characters that
	// reference them, so chain order alone is not replayable. Hold each
	// character until both anchors are out, then flush its dependents.
	placed := map[ident.ID]bool{ident.Begin: true, ident.End: true}
	waiting := map[ident.ID][]Character{}
	var deletes CommandSet

	var emit func(c Character)
	emit = func(c Character) {
		out = append(out, Command{ID: c.ID, Insert: &Insert{After: c.After, Before: c.Before, R: c.R}})
		if !c.Visible {
			deletes = append(deletes, Command{ID: c.ID, Delete: true})
		}
		placed[c.ID] = true

		for _, w := range waiting[c.ID] {
			if placed[w.ID] {
				continue
			}
			if !placed[w.After] {
				waiting[w.After] = append(waiting[w.After], w)
			} else if !placed[w.Before] {
				waiting[w.Before] = append(waiting[w.Before], w)
			} else {
				emit(w)
			}
		}
		delete(waiting, c.ID)
	}

	for c := range s.chain() {
		if !c.ID.Valid() || placed[c.ID] {
			continue
		}
		if !placed[c.After] {
			waiting[c.After] = append(waiting[c.After], c)
		} else if !placed[c.Before] {
			waiting[c.Before] = append(waiting[c.Before], c)
		} else {
			emit(c)
		}
	}
	if len(waiting) != 0 {
		panic("character chain references unknown ID")
	}

	out = append(out, deletes...)

	for id, a := range s.annos.Iter() {
		an := a
		out = append(out, Command{ID: id, MarkAnnotation: &an})
	}
	return out
}
