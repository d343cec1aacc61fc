package astring

import (
	"errors"
	"fmt"
	"iter"
	"reflect"

	"github.com/sorenh/cobuf/ident"
	"github.com/sorenh/cobuf/pmap"
)

var (
	ErrNoSentinels = errors.New("snapshot missing sentinel characters")
	ErrBadChain    = errors.New("snapshot character chain is broken")
)

// AttributeEntry pairs an attribute with its ID for serialization.
type AttributeEntry struct {
	ID        ident.ID  `json:"id"`
	Attribute Attribute `json:"attribute"`
}

// AnnotationEntry pairs an annotation with its ID for serialization.
type AnnotationEntry struct {
	ID         ident.ID   `json:"id"`
	Annotation Annotation `json:"annotation"`
}

// Snapshot is the serializable form of an AnnotatedString. Characters
// appear in chain order (sentinels included); attributes, annotations
// and the graveyard appear in ID order. Two snapshots of equivalent
// values are byte-identical once encoded.
type Snapshot struct {
	Chars       []Character       `json:"chars"`
	Attributes  []AttributeEntry  `json:"attributes"`
	Annotations []AnnotationEntry `json:"annotations"`
	Graveyard   []ident.ID        `json:"graveyard"`
}

// Snapshot renders the value into its serializable form.
func (s AnnotatedString) Snapshot() Snapshot {
	out := Snapshot{
		Chars:       make([]Character, 0, s.chars.Len()),
		Attributes:  make([]AttributeEntry, 0, s.attrs.Len()),
		Annotations: make([]AnnotationEntry, 0, s.annos.Len()),
		Graveyard:   make([]ident.ID, 0, s.graveyard.Len()),
	}
	for c := range s.chain() {
		out.Chars = append(out.Chars, c)
	}
	for id, attr := range s.attrs.Iter() {
		out.Attributes = append(out.Attributes, AttributeEntry{ID: id, Attribute: attr})
	}
	for id, a := range s.annos.Iter() {
		out.Annotations = append(out.Annotations, AnnotationEntry{ID: id, Annotation: a})
	}
	for id := range s.graveyard.Keys() {
		out.Graveyard = append(out.Graveyard, id)
	}
	return out
}

// FromSnapshot rebuilds an AnnotatedString from its serialized form.
func FromSnapshot(sn Snapshot) (AnnotatedString, error) {
	out := AnnotatedString{
		chars:     pmap.New[ident.ID, Character](compareID),
		attrs:     pmap.New[ident.ID, Attribute](compareID),
		annos:     pmap.New[ident.ID, Annotation](compareID),
		graveyard: pmap.New[ident.ID, struct{}](compareID),
	}

	for _, c := range sn.Chars {
		if out.chars.Has(c.ID) {
			return out, fmt.Errorf("%w: duplicate character %v", ErrBadChain, c.ID)
		}
		out.chars = out.chars.Set(c.ID, c)
	}
	begin, okBegin := out.chars.Get(ident.Begin)
	_, okEnd := out.chars.Get(ident.End)
	if !okBegin || !okEnd {
		return out, ErrNoSentinels
	}

	// Every character must be reachable along the chain.
	reached := 0
	id := ident.Begin
	c := begin
	for {
		reached++
		if id == ident.End {
			break
		}
		id = c.Next
		var ok bool
		c, ok = out.chars.Get(id)
		if !ok || reached > out.chars.Len() {
			return out, ErrBadChain
		}
	}
	if reached != out.chars.Len() {
		return out, ErrBadChain
	}

	for _, e := range sn.Attributes {
		out.attrs = out.attrs.Set(e.ID, e.Attribute)
	}
	for _, e := range sn.Annotations {
		out.annos = out.annos.Set(e.ID, e.Annotation)
	}
	for _, id := range sn.Graveyard {
		out.graveyard = out.graveyard.Set(id, struct{}{})
	}
	return out, nil
}

// Equal reports whether two values are equivalent: their live entries
// agree and their character chains are identical.
func Equal(a, b AnnotatedString) bool {
	if a.chars.Len() != b.chars.Len() ||
		a.attrs.Len() != b.attrs.Len() ||
		a.annos.Len() != b.annos.Len() ||
		a.graveyard.Len() != b.graveyard.Len() {
		return false
	}

	next, stop := iter.Pull(b.chain())
	defer stop()
	for ca := range a.chain() {
		cb, ok := next()
		if !ok || ca != cb {
			return false
		}
	}

	for id, attr := range a.attrs.Iter() {
		other, ok := b.attrs.Get(id)
		if !ok || !reflect.DeepEqual(attr, other) {
			return false
		}
	}
	for id, an := range a.annos.Iter() {
		other, ok := b.annos.Get(id)
		if !ok || an != other {
			return false
		}
	}
	for id := range a.graveyard.Keys() {
		if !b.graveyard.Has(id) {
			return false
		}
	}
	return true
}
