package bsid

import "testing"

func TestNewIDRoundTripsThroughString(t *testing.T) {
	id := NewID()
	parsed, err := ParseID(id.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != id {
		t.Fatalf("expected %v, got %v", id, parsed)
	}
}

func TestNilIDIsNil(t *testing.T) {
	if !Nil.IsNil() {
		t.Fatalf("expected Nil to report IsNil")
	}
	if NewID().IsNil() {
		t.Fatalf("a fresh ID should never equal Nil")
	}
}

func TestPropertyAsAccessorsRejectWrongKind(t *testing.T) {
	p := Int(7)
	if _, ok := p.AsString(); ok {
		t.Fatalf("expected AsString to fail on a KindInt property")
	}
	v, ok := p.AsInt()
	if !ok || v != 7 {
		t.Fatalf("expected AsInt to return 7, got %v, %v", v, ok)
	}
}

func TestPropertyObjectNoneWithNilHandle(t *testing.T) {
	p := Object(nil)
	if p.Kind() != KindObject {
		t.Fatalf("expected Kind() == KindObject even with a nil handle")
	}
	if !p.IsNone() {
		t.Fatalf("expected a nil object handle to report IsNone")
	}
}

func TestPropertyCompareOrdersByKindFirst(t *testing.T) {
	if Int(100).Compare(Str("a")) == 0 {
		t.Fatalf("properties of different kinds should never compare equal")
	}
	if Int(1).Compare(Int(2)) >= 0 {
		t.Fatalf("expected Int(1) < Int(2)")
	}
}

func TestPropDictSetGetDelete(t *testing.T) {
	d := NewPropDict()
	d.Set("name", Str("leaf"))
	p, ok := d.Get("name")
	if !ok {
		t.Fatalf("expected to find 'name'")
	}
	if s, _ := p.AsString(); s != "leaf" {
		t.Fatalf("expected 'leaf', got %q", s)
	}
	d.Delete("name")
	if d.Has("name") {
		t.Fatalf("expected 'name' to be gone after Delete")
	}
}

func TestPropDictCloneIsIndependent(t *testing.T) {
	d := NewPropDict().Set("a", Int(1))
	clone := d.Clone()
	d.Set("a", Int(2))
	v, _ := clone.Get("a")
	got, _ := v.AsInt()
	if got != 1 {
		t.Fatalf("expected clone to keep its own snapshot, got %d", got)
	}
}

func TestPropDictKeysSorted(t *testing.T) {
	d := NewPropDict().Set("b", Int(1)).Set("a", Int(2))
	keys := d.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("expected sorted keys [a b], got %v", keys)
	}
}
