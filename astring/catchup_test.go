package astring

import (
	"testing"

	"github.com/sorenh/cobuf/ident"
)

func TestCommandsRebuildValue(t *testing.T) {
	alloc := ident.NewAllocatorAt(2)

	ins := MakeInsert(alloc, ident.Begin, ident.End, "rebuild me")
	decl, attrID := MakeDeclAttribute(alloc, Attribute{
		Diagnostic: &Diagnostic{Severity: SeverityNote, Message: "derived"},
	})
	mark, _ := MakeMarkAnnotation(alloc, ins[0].ID, ins[6].ID, attrID)

	s := New().
		Integrate(ins).
		Integrate(decl).
		Integrate(mark).
		Integrate(MakeDelete(ins[3].ID))

	back := New().Integrate(s.Commands())
	if !Equal(s, back) {
		t.Errorf("rebuilt value diverged: %q vs %q", s.Render(), back.Render())
	}
}

func TestCommandsReplayableAcrossSites(t *testing.T) {
	// The before anchor of an early-chain character can live later in
	// the chain; the derived order must still apply in one pass.
	a1 := ident.NewAllocatorAt(1)
	a9 := ident.NewAllocatorAt(9)

	tail := MakeInsert(a9, ident.Begin, ident.End, "tail")
	s := New().Integrate(tail)
	s = s.Integrate(MakeInsert(a1, tail[0].ID, tail[1].ID, "-mid-"))
	// "head " sits first in the chain but its before anchor is the
	// chain-later 't'.
	s = s.Integrate(MakeInsert(a1, ident.Begin, tail[0].ID, "head "))

	back := New().Integrate(s.Commands())
	if !Equal(s, back) {
		t.Errorf("rebuilt value diverged: %q vs %q", s.Render(), back.Render())
	}
	if back.Render() != s.Render() {
		t.Errorf("render diverged: %q vs %q", s.Render(), back.Render())
	}
}

func TestCommandsIdempotentOnPopulatedReplica(t *testing.T) {
	alloc := ident.NewAllocatorAt(3)
	s := New().Integrate(MakeInsert(alloc, ident.Begin, ident.End, "same"))

	again := s.Integrate(s.Commands())
	if !Equal(s, again) {
		t.Errorf("replaying onto an up-to-date replica must change nothing")
	}
}

func TestCommandsEmptyValue(t *testing.T) {
	if got := New().Commands(); len(got) != 0 {
		t.Errorf("empty value must derive no commands, was %d", len(got))
	}
}
