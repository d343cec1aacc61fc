package astring

import (
	"github.com/sorenh/cobuf/ident"
)

// Integrate returns a new value with all commands applied. It is pure
// and total: commands that reference unknown IDs or duplicate an
// already-integrated ID are skipped, never fatal. Two replicas that
// integrate the same set of commands, in any grouping and order that
// keeps each author's chain intact, converge to equal values.
func (s AnnotatedString) Integrate(cmds CommandSet) AnnotatedString {
	for _, cmd := range cmds {
		s = s.integrate(cmd)
	}
	return s
}

func (s AnnotatedString) integrate(cmd Command) AnnotatedString {
	switch {
	case cmd.Insert != nil:
		return s.integrateInsert(cmd.ID, cmd.Insert)
	case cmd.Delete:
		return s.integrateDelete(cmd.ID)
	case cmd.DeclAttribute != nil:
		if s.attrs.Has(cmd.ID) || s.graveyard.Has(cmd.ID) {
			return s
		}
		s.attrs = s.attrs.Set(cmd.ID, *cmd.DeclAttribute)
		return s
	case cmd.DeleteAttribute:
		if !s.attrs.Has(cmd.ID) {
			return s
		}
		s.attrs = s.attrs.Remove(cmd.ID)
		s.graveyard = s.graveyard.Set(cmd.ID, struct{}{})
		return s
	case cmd.MarkAnnotation != nil:
		if s.annos.Has(cmd.ID) || s.graveyard.Has(cmd.ID) {
			return s
		}
		s.annos = s.annos.Set(cmd.ID, *cmd.MarkAnnotation)
		return s
	case cmd.DeleteAnnotation:
		if !s.annos.Has(cmd.ID) {
			return s
		}
		s.annos = s.annos.Remove(cmd.ID)
		s.graveyard = s.graveyard.Set(cmd.ID, struct{}{})
		return s
	}
	return s // empty command
}

func (s AnnotatedString) integrateInsert(id ident.ID, ins *Insert) AnnotatedString {
	if !id.Valid() || s.chars.Has(id) {
		return s
	}
	if ins.After == ins.Before || !s.chars.Has(ins.After) || !s.chars.Has(ins.Before) {
		return s // unknown or malformed anchors
	}

	// Narrow the gap until it is empty. Only characters anchored across
	// the whole gap compete for it; a character anchored strictly inside
	// hangs off one of the competitors and moves with it. Competitors
	// sort by ascending ID, and the search descends into the sub-gap the
	// new ID falls in, so replicas place the character identically no
	// matter what order the inserts arrived in.
	left, right := ins.After, ins.Before
	for {
		interior, ok := s.interval(left, right)
		if !ok {
			return s // before anchor not ahead of after anchor
		}
		if len(interior) == 0 {
			break
		}

		inside := make(map[ident.ID]struct{}, len(interior))
		for _, c := range interior {
			inside[c.ID] = struct{}{}
		}

		narrowed := false
		nl, nr := left, right
		for _, c := range interior {
			if _, ok := inside[c.After]; ok {
				continue
			}
			if _, ok := inside[c.Before]; ok {
				continue
			}
			narrowed = true
			if c.ID > id {
				nr = c.ID
				break
			}
			nl = c.ID
		}
		if !narrowed {
			panic("no character anchored across the gap")
		}
		left, right = nl, nr
	}

	prev, _ := s.chars.Get(left)
	next, _ := s.chars.Get(right)
	prev.Next = id
	next.Prev = id

	s.chars = s.chars.
		Set(left, prev).
		Set(right, next).
		Set(id, Character{
			ID:      id,
			Visible: true,
			R:       ins.R,
			Next:    right,
			Prev:    left,
			After:   ins.After,
			Before:  ins.Before,
		})
	return s
}

// interval collects the characters strictly between left and right in
// chain order. ok is false when right is not ahead of left.
func (s AnnotatedString) interval(left, right ident.ID) (interior []Character, ok bool) {
	c, _ := s.chars.Get(left)
	for at := c.Next; at != right; {
		if at == ident.End {
			return nil, false
		}
		n, ok := s.chars.Get(at)
		if !ok {
			panic("character chain references unknown ID")
		}
		interior = append(interior, n)
		at = n.Next
	}
	return interior, true
}

func (s AnnotatedString) integrateDelete(id ident.ID) AnnotatedString {
	c, ok := s.chars.Get(id)
	if !ok || !c.Visible {
		return s
	}
	c.Visible = false
	s.chars = s.chars.Set(id, c)
	return s
}
