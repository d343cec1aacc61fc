package astring

import (
	"github.com/sorenh/cobuf/ident"
)

// Insert places one character between two existing IDs, as observed by
// its author. Concurrent inserts into the same gap are ordered by
// command ID during integration.
type Insert struct {
	After  ident.ID `json:"after"`
	Before ident.ID `json:"before"`
	R      rune     `json:"chr"`
}

// Command is one document mutation. Exactly one of the operation fields
// is set. The outer ID is the ID of the entity the command creates
// (insert, declare, mark) or affects (the delete variants), and makes
// the command idempotent.
type Command struct {
	ID ident.ID `json:"id"`

	Insert           *Insert     `json:"insert,omitempty"`
	Delete           bool        `json:"delete,omitempty"`
	DeclAttribute    *Attribute  `json:"decl_attribute,omitempty"`
	DeleteAttribute  bool        `json:"delete_attribute,omitempty"`
	MarkAnnotation   *Annotation `json:"mark_annotation,omitempty"`
	DeleteAnnotation bool        `json:"delete_annotation,omitempty"`
}

// CommandSet is an ordered batch of commands. It is the atomic unit of
// fan-out: listeners always see a whole set or none of it.
type CommandSet []Command

// MakeInsert builds a command chain placing text between the given IDs.
// Each character is anchored after the previous one, so the chain
// integrates as a run even against concurrent edits.
func MakeInsert(alloc *ident.Allocator, after, before ident.ID, text string) CommandSet {
	out := make(CommandSet, 0, len(text))
	prev := after
	for _, r := range text {
		id := alloc.Next()
		out = append(out, Command{
			ID:     id,
			Insert: &Insert{After: prev, Before: before, R: r},
		})
		prev = id
	}
	return out
}

// MakeDelete tombstones the character with the given ID.
func MakeDelete(id ident.ID) CommandSet {
	return CommandSet{{ID: id, Delete: true}}
}

// MakeDeclAttribute declares a new attribute, returning its ID.
func MakeDeclAttribute(alloc *ident.Allocator, attr Attribute) (CommandSet, ident.ID) {
	id := alloc.Next()
	return CommandSet{{ID: id, DeclAttribute: &attr}}, id
}

// MakeDeleteAttribute tombstones the attribute with the given ID.
func MakeDeleteAttribute(id ident.ID) CommandSet {
	return CommandSet{{ID: id, DeleteAttribute: true}}
}

// MakeMarkAnnotation marks the half-open span [begin,end) with the
// given attribute, returning the annotation's ID.
func MakeMarkAnnotation(alloc *ident.Allocator, begin, end, attr ident.ID) (CommandSet, ident.ID) {
	id := alloc.Next()
	return CommandSet{{ID: id, MarkAnnotation: &Annotation{Begin: begin, End: end, Attribute: attr}}}, id
}

// MakeDeleteAnnotation tombstones the annotation with the given ID.
func MakeDeleteAnnotation(id ident.ID) CommandSet {
	return CommandSet{{ID: id, DeleteAnnotation: true}}
}
