package pmap

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

func intCompare(a, b int) int { return a - b }

func TestSetGet(t *testing.T) {
	m := New[int, string](intCompare)
	m = m.Set(2, "two")
	m = m.Set(1, "one")
	m = m.Set(3, "three")

	if m.Len() != 3 {
		t.Errorf("expected 3 entries, was %d", m.Len())
	}
	if v, ok := m.Get(2); !ok || v != "two" {
		t.Errorf("expected two, was %q (%v)", v, ok)
	}
	if _, ok := m.Get(4); ok {
		t.Errorf("expected missing key")
	}

	m = m.Set(2, "zwei")
	if v, _ := m.Get(2); v != "zwei" {
		t.Errorf("expected replaced value, was %q", v)
	}
	if m.Len() != 3 {
		t.Errorf("replace must not change length, was %d", m.Len())
	}
}

func TestPersistence(t *testing.T) {
	empty := New[int, int](intCompare)

	versions := []Map[int, int]{empty}
	m := empty
	for i := 0; i < 100; i++ {
		m = m.Set(i, i*i)
		versions = append(versions, m)
	}

	for i, v := range versions {
		if v.Len() != i {
			t.Fatalf("version %d: expected len %d, was %d", i, i, v.Len())
		}
		for k := 0; k < i; k++ {
			if got, ok := v.Get(k); !ok || got != k*k {
				t.Fatalf("version %d: key %d, was %d (%v)", i, k, got, ok)
			}
		}
		if v.Has(i) {
			t.Fatalf("version %d: must not see later keys", i)
		}
	}
}

func TestRemove(t *testing.T) {
	m := New[int, int](intCompare)
	for i := 0; i < 64; i++ {
		m = m.Set(i, i)
	}

	before := m
	m = m.Remove(31)
	if m.Len() != 63 || m.Has(31) {
		t.Errorf("expected 31 removed, len %d", m.Len())
	}
	if before.Len() != 64 || !before.Has(31) {
		t.Errorf("prior version must be unchanged")
	}

	same := m.Remove(31)
	if same.Len() != m.Len() {
		t.Errorf("removing missing key must be a no-op")
	}
}

func TestOrderedIter(t *testing.T) {
	m := New[int, int](intCompare)

	r := rand.New(rand.NewSource(1))
	var want []int
	for _, k := range r.Perm(500) {
		m = m.Set(k, k)
		want = append(want, k)
	}
	sort.Ints(want)

	var got []int
	for k, v := range m.Iter() {
		if k != v {
			t.Fatalf("mismatched entry %d=%d", k, v)
		}
		got = append(got, k)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("iteration out of order")
	}
}

func TestRandomAgainstMap(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	m := New[int, int](intCompare)
	ref := map[int]int{}

	for i := 0; i < 5000; i++ {
		k := r.Intn(400)
		if r.Intn(3) == 0 {
			m = m.Remove(k)
			delete(ref, k)
		} else {
			m = m.Set(k, i)
			ref[k] = i
		}
	}

	if m.Len() != len(ref) {
		t.Fatalf("expected len %d, was %d", len(ref), m.Len())
	}
	for k, v := range ref {
		if got, ok := m.Get(k); !ok || got != v {
			t.Fatalf("key %d: expected %d, was %d (%v)", k, v, got, ok)
		}
	}
	prev := -1
	for k := range m.Keys() {
		if k <= prev {
			t.Fatalf("keys out of order: %d after %d", k, prev)
		}
		prev = k
	}
}
