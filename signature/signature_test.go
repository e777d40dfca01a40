package signature_test

import (
	"testing"

	"github.com/df-mc/gdk/signature"
)

func TestMain(m *testing.M) {
	signature.SetWidth(130)
	m.Run()
}

func TestSetHas(t *testing.T) {
	s := signature.New()
	if s.Has(5) {
		t.Fatalf("expected bit 5 unset on empty signature")
	}
	s.Set(5)
	if !s.Has(5) {
		t.Fatalf("expected bit 5 set")
	}
	s.Clear(5)
	if s.Has(5) {
		t.Fatalf("expected bit 5 cleared")
	}
}

func TestSetAcrossWords(t *testing.T) {
	s := signature.New()
	s.Set(0)
	s.Set(63)
	s.Set(64)
	s.Set(129)
	for _, id := range []uint32{0, 63, 64, 129} {
		if !s.Has(id) {
			t.Fatalf("expected bit %d set", id)
		}
	}
	if s.Has(1) || s.Has(128) {
		t.Fatalf("unexpected bits set")
	}
}

func TestUnknownComponentIgnored(t *testing.T) {
	s := signature.New()
	s.Set(99999)
	if s.Has(99999) {
		t.Fatalf("out-of-range component id should not be tracked")
	}
}

func TestIsSubsetOf(t *testing.T) {
	a, b := signature.New(), signature.New()
	a.Set(1)
	a.Set(2)
	b.Set(1)
	b.Set(2)
	b.Set(3)
	if !a.IsSubsetOf(b) {
		t.Fatalf("a should be subset of b")
	}
	if b.IsSubsetOf(a) {
		t.Fatalf("b should not be subset of a")
	}
	empty := signature.New()
	if !empty.IsSubsetOf(a) {
		t.Fatalf("empty signature is a subset of anything")
	}
}

func TestEqual(t *testing.T) {
	a, b := signature.New(), signature.New()
	a.Set(10)
	b.Set(10)
	if !a.Equal(b) {
		t.Fatalf("expected equal signatures")
	}
	b.Set(11)
	if a.Equal(b) {
		t.Fatalf("expected signatures to differ")
	}
}

func TestHashStableForEqualSignatures(t *testing.T) {
	a, b := signature.New(), signature.New()
	a.Set(3)
	a.Set(40)
	b.Set(3)
	b.Set(40)
	if a.Hash() != b.Hash() {
		t.Fatalf("equal signatures must hash equally")
	}
}

func TestEmpty(t *testing.T) {
	s := signature.New()
	if !s.Empty() {
		t.Fatalf("new signature should be empty")
	}
	s.Set(7)
	if s.Empty() {
		t.Fatalf("signature with a bit set should not be empty")
	}
}
