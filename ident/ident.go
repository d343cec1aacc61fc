// Package ident allocates document-wide unique identifiers.
// An ID combines a per-process site prefix with a per-site counter, so
// concurrently allocated IDs never collide and IDs from one site always
// compare in allocation order.
package ident

import (
	rand "math/rand/v2"
	"sync/atomic"

	"github.com/taylorza/go-lfsr"
)

// ID identifies a character, attribute, annotation or command for the
// lifetime of a document. IDs are never reused, even after deletion.
type ID uint64

const (
	// Begin and End are the sentinel IDs bounding the character chain.
	// No allocated ID ever equals either.
	Begin ID = 0
	End   ID = 1

	siteShift = 48
	seqMask   = (uint64(1) << siteShift) - 1
)

// Site returns the site prefix an ID was allocated under, or zero for
// the sentinels.
func (id ID) Site() uint16 {
	return uint16(uint64(id) >> siteShift)
}

// Seq returns the per-site counter value of an ID.
func (id ID) Seq() uint64 {
	return uint64(id) & seqMask
}

// Valid reports whether the ID is an allocated (non-sentinel) ID.
func (id ID) Valid() bool {
	return id.Site() != 0
}

// Allocator hands out IDs for a single site.
// The zero Allocator is not usable; create one with NewAllocator.
type Allocator struct {
	prefix uint64
	seq    atomic.Uint64
}

// NewAllocator builds an Allocator with a randomly chosen site prefix.
func NewAllocator() *Allocator {
	return NewAllocatorAt(newSitePrefix())
}

// NewAllocatorAt builds an Allocator for an explicit site prefix.
// The prefix must be non-zero; zero is reserved for the sentinels.
func NewAllocatorAt(site uint16) *Allocator {
	if site == 0 {
		panic("site prefix zero is reserved")
	}
	return &Allocator{prefix: uint64(site) << siteShift}
}

// Site returns the allocator's site prefix.
func (a *Allocator) Site() uint16 {
	return uint16(a.prefix >> siteShift)
}

// Next returns a fresh ID, greater than any previous ID from this site.
func (a *Allocator) Next() ID {
	seq := a.seq.Add(1)
	if seq > seqMask {
		panic("site counter exhausted")
	}
	return ID(a.prefix | seq)
}

// newSitePrefix draws a non-zero 16-bit site prefix. Each call seeds
// its own lfsr, so distinct allocators get independent random prefixes
// and can collide within the 16-bit site space; a process is expected
// to hold one allocator per document.
func newSitePrefix() uint16 {
	gen := lfsr.NewLfsr32(rand.Uint32())
	for {
		raw, restarted := gen.Next()
		if restarted {
			panic("generated ~32 bits of site prefixes")
		}
		if site := uint16(raw); site != 0 {
			return site
		}
	}
}
