// Package astring implements an annotated string: an ordered sequence
// of characters plus attribute and annotation tables, maintained as a
// convergent replicated value. Replicas exchange CommandSets; applying
// the same set of commands in any order that delivers each command
// after the characters it references yields equal values.
package astring

import (
	"github.com/sorenh/cobuf/ident"
	"github.com/sorenh/cobuf/pmap"
)

// Character is one element of the document sequence.
// Next/Prev encode the current traversal order. After/Before are the
// insertion context chosen by the author and never change.
// An invisible character is a tombstone: it stays addressable forever.
type Character struct {
	ID      ident.ID `json:"id"`
	Visible bool     `json:"visible"`
	R       rune     `json:"chr"`
	Next    ident.ID `json:"next"`
	Prev    ident.ID `json:"prev"`
	After   ident.ID `json:"after"`
	Before  ident.ID `json:"before"`
}

// Severity grades a Diagnostic.
type Severity int32

const (
	SeverityUnset Severity = iota
	SeverityIgnored
	SeverityNote
	SeverityWarning
	SeverityError
	SeverityFatal
)

// FixitType describes where a Fixit came from.
type FixitType int32

const (
	FixitUnset FixitType = iota
	FixitAutosuggest
	FixitCompileFix
	FixitTidyFix
)

// SizeType describes what a SizeAnnotation measures.
type SizeType int32

const (
	SizeUnset SizeType = iota
	SizeOffsetIntoParent
	SizeofSelf
)

type TagSet struct {
	Tags []string `json:"tags"`
}

type Diagnostic struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type Fixit struct {
	Type        FixitType `json:"type"`
	Diagnostic  ident.ID  `json:"diagnostic"`
	Replacement string    `json:"replacement"`
}

type SizeAnnotation struct {
	Type SizeType `json:"type"`
	Size uint64   `json:"size"`
	Bits uint32   `json:"bits"`
}

type TopContext struct {
	Lines []string `json:"lines"`
}

type BufferRef struct {
	Buffer ident.ID `json:"buffer"`
	Lines  []int32  `json:"lines"`
}

// Cursor and Selection are opaque markers; their meaning lives in the
// annotation span they decorate.
type Cursor struct{}

type Selection struct{}

type BufferString struct {
	Name     string `json:"name"`
	Contents string `json:"contents"`
}

type Dependency struct {
	Filename string `json:"filename"`
}

// Attribute is a tagged union: exactly one field is non-nil.
type Attribute struct {
	TagSet       *TagSet         `json:"tag_set,omitempty"`
	Diagnostic   *Diagnostic     `json:"diagnostic,omitempty"`
	Fixit        *Fixit          `json:"fixit,omitempty"`
	Size         *SizeAnnotation `json:"size,omitempty"`
	TopContext   *TopContext     `json:"top_context,omitempty"`
	BufferRef    *BufferRef      `json:"buffer_ref,omitempty"`
	Cursor       *Cursor         `json:"cursor,omitempty"`
	Selection    *Selection      `json:"selection,omitempty"`
	BufferString *BufferString   `json:"buffer_string,omitempty"`
	Dependency   *Dependency     `json:"dependency,omitempty"`
}

// Annotation decorates the half-open character span [Begin,End) with an
// attribute. The span is defined by character identity, not position,
// so it survives intervening inserts and deletes.
type Annotation struct {
	Begin     ident.ID `json:"begin"`
	End       ident.ID `json:"end"`
	Attribute ident.ID `json:"attribute"`
}

// AnnotatedString is the document value. It has value semantics: all
// mutating operations return a new value and the old one stays valid.
// The maps share structure, so keeping many versions alive is cheap.
type AnnotatedString struct {
	chars     pmap.Map[ident.ID, Character]
	attrs     pmap.Map[ident.ID, Attribute]
	annos     pmap.Map[ident.ID, Annotation]
	graveyard pmap.Map[ident.ID, struct{}]
}

func compareID(a, b ident.ID) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// New returns the canonical empty document: the two sentinels linked to
// each other and nothing else.
func New() AnnotatedString {
	chars := pmap.New[ident.ID, Character](compareID)
	chars = chars.Set(ident.Begin, Character{
		ID:   ident.Begin,
		Next: ident.End,
		Prev: ident.Begin,
	})
	chars = chars.Set(ident.End, Character{
		ID:   ident.End,
		Next: ident.End,
		Prev: ident.Begin,
	})

	return AnnotatedString{
		chars:     chars,
		attrs:     pmap.New[ident.ID, Attribute](compareID),
		annos:     pmap.New[ident.ID, Annotation](compareID),
		graveyard: pmap.New[ident.ID, struct{}](compareID),
	}
}

// Char looks up a character (live or tombstoned) by ID.
func (s AnnotatedString) Char(id ident.ID) (Character, bool) {
	return s.chars.Get(id)
}

// Attribute looks up a live attribute by ID.
func (s AnnotatedString) Attribute(id ident.ID) (Attribute, bool) {
	return s.attrs.Get(id)
}

// Annotation looks up a live annotation by ID.
func (s AnnotatedString) Annotation(id ident.ID) (Annotation, bool) {
	return s.annos.Get(id)
}

// Tombstoned reports whether the given attribute or annotation ID has
// been deleted.
func (s AnnotatedString) Tombstoned(id ident.ID) bool {
	return s.graveyard.Has(id)
}
