package astring

import (
	"iter"
	"strings"

	"github.com/sorenh/cobuf/ident"
)

// Render returns the visible document text in order.
func (s AnnotatedString) Render() string {
	var b strings.Builder
	for _, c := range s.Iterate() {
		b.WriteRune(c.R)
	}
	return b.String()
}

// Iterate visits the visible characters in document order.
func (s AnnotatedString) Iterate() iter.Seq2[ident.ID, Character] {
	return func(yield func(ident.ID, Character) bool) {
		for c := range s.chain() {
			if c.Visible && !yield(c.ID, c) {
				return
			}
		}
	}
}

// chain walks every character (sentinels and tombstones included) in
// Next order from Begin to End.
func (s AnnotatedString) chain() iter.Seq[Character] {
	return func(yield func(Character) bool) {
		id := ident.Begin
		for {
			c, ok := s.chars.Get(id)
			if !ok {
				panic("character chain references unknown ID")
			}
			if !yield(c) {
				return
			}
			if id == ident.End {
				return
			}
			id = c.Next
		}
	}
}

// Len returns the number of visible characters.
func (s AnnotatedString) Len() int {
	n := 0
	for range s.Iterate() {
		n++
	}
	return n
}

// Chars returns the total number of characters in the sequence,
// sentinels and tombstones included.
func (s AnnotatedString) Chars() int {
	return s.chars.Len()
}

// Attributes visits all live attributes in ID order.
func (s AnnotatedString) Attributes() iter.Seq2[ident.ID, Attribute] {
	return s.attrs.Iter()
}

// Annotations visits all live annotations in ID order.
func (s AnnotatedString) Annotations() iter.Seq2[ident.ID, Annotation] {
	return s.annos.Iter()
}

// AnnotationSpan visits the characters of the annotation's half-open
// span [begin,end) in document order, tombstones included. It yields
// nothing for an unknown annotation or a span whose anchors are not in
// chain order.
func (s AnnotatedString) AnnotationSpan(id ident.ID) iter.Seq[Character] {
	return func(yield func(Character) bool) {
		a, ok := s.annos.Get(id)
		if !ok {
			return
		}
		var span []Character
		cur := a.Begin
		for cur != a.End {
			c, ok := s.chars.Get(cur)
			if !ok || cur == ident.End {
				return
			}
			span = append(span, c)
			cur = c.Next
		}
		for _, c := range span {
			if !yield(c) {
				return
			}
		}
	}
}
