package bsid

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the alternative a Property currently holds.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindID
	KindInt
	KindFloat
	KindDuration
	KindTimestamp
	KindString
	KindObject
	KindBoolList
	KindIDList
	KindIntList
	KindFloatList
	KindDurationList
	KindTimestampList
	KindStringList
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindID:
		return "id"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDuration:
		return "duration"
	case KindTimestamp:
		return "timestamp"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindBoolList:
		return "[]bool"
	case KindIDList:
		return "[]id"
	case KindIntList:
		return "[]int"
	case KindFloatList:
		return "[]float"
	case KindDurationList:
		return "[]duration"
	case KindTimestampList:
		return "[]timestamp"
	case KindStringList:
		return "[]string"
	default:
		return "unknown"
	}
}

// ObjectHandle is the minimal surface a "shared object handle" property
// alternative must satisfy. A nil ObjectHandle denotes "none".
type ObjectHandle interface {
	ObjectID() string
}

// Property is a tagged union of scalar and homogeneous-list alternatives.
// The zero value is KindNone.
type Property struct {
	kind Kind
	v    any
}

func None() Property { return Property{kind: KindNone} }

func Bool(b bool) Property              { return Property{kind: KindBool, v: b} }
func FromID(id ID) Property             { return Property{kind: KindID, v: id} }
func Int(i int64) Property              { return Property{kind: KindInt, v: i} }
func Float(f float64) Property          { return Property{kind: KindFloat, v: f} }
func Duration(d time.Duration) Property { return Property{kind: KindDuration, v: d} }
func TimeVal(t Timestamp) Property      { return Property{kind: KindTimestamp, v: t} }
func Str(s string) Property             { return Property{kind: KindString, v: s} }

// Object wraps a shared object handle. Passing nil denotes "none" while
// still reporting Kind() == KindObject.
func Object(h ObjectHandle) Property { return Property{kind: KindObject, v: h} }

func BoolList(v []bool) Property              { return Property{kind: KindBoolList, v: v} }
func IDList(v []ID) Property                  { return Property{kind: KindIDList, v: v} }
func IntList(v []int64) Property              { return Property{kind: KindIntList, v: v} }
func FloatList(v []float64) Property          { return Property{kind: KindFloatList, v: v} }
func DurationList(v []time.Duration) Property { return Property{kind: KindDurationList, v: v} }
func TimestampList(v []Timestamp) Property    { return Property{kind: KindTimestampList, v: v} }
func StringList(v []string) Property          { return Property{kind: KindStringList, v: v} }

func (p Property) Kind() Kind { return p.kind }

func (p Property) IsNone() bool {
	if p.kind == KindNone {
		return true
	}
	if p.kind == KindObject {
		h, _ := p.v.(ObjectHandle)
		return h == nil
	}
	return false
}

// AsBool, AsID, ... extract the typed value, with ok=false on a kind
// mismatch rather than panicking.
func (p Property) AsBool() (bool, bool) { v, ok := p.v.(bool); return v, ok && p.kind == KindBool }
func (p Property) AsID() (ID, bool)     { v, ok := p.v.(ID); return v, ok && p.kind == KindID }
func (p Property) AsInt() (int64, bool) { v, ok := p.v.(int64); return v, ok && p.kind == KindInt }
func (p Property) AsFloat() (float64, bool) {
	v, ok := p.v.(float64)
	return v, ok && p.kind == KindFloat
}
func (p Property) AsDuration() (time.Duration, bool) {
	v, ok := p.v.(time.Duration)
	return v, ok && p.kind == KindDuration
}
func (p Property) AsTimestamp() (Timestamp, bool) {
	v, ok := p.v.(Timestamp)
	return v, ok && p.kind == KindTimestamp
}
func (p Property) AsString() (string, bool) {
	v, ok := p.v.(string)
	return v, ok && p.kind == KindString
}
func (p Property) AsObject() (ObjectHandle, bool) {
	v, ok := p.v.(ObjectHandle)
	return v, ok && p.kind == KindObject
}

// AsIDList extracts a KindIDList alternative, used by subscribers
// reading the descendant-link-ID list off a deep-erase ack.
func (p Property) AsIDList() ([]ID, bool) {
	v, ok := p.v.([]ID)
	return v, ok && p.kind == KindIDList
}

// Compare provides a total order over properties of the same Kind.
// Mixed-kind comparisons order by Kind first.
func (p Property) Compare(other Property) int {
	if p.kind != other.kind {
		if p.kind < other.kind {
			return -1
		}
		return 1
	}
	switch p.kind {
	case KindNone:
		return 0
	case KindBool:
		a, _ := p.AsBool()
		b, _ := other.AsBool()
		if a == b {
			return 0
		}
		if !a {
			return -1
		}
		return 1
	case KindID:
		a, _ := p.AsID()
		b, _ := other.AsID()
		return strings.Compare(a.String(), b.String())
	case KindInt:
		a, _ := p.AsInt()
		b, _ := other.AsInt()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	case KindFloat:
		a, _ := p.AsFloat()
		b, _ := other.AsFloat()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	case KindDuration:
		a, _ := p.AsDuration()
		b, _ := other.AsDuration()
		return int(a - b)
	case KindTimestamp:
		a, _ := p.AsTimestamp()
		b, _ := other.AsTimestamp()
		return a.Time().Compare(b.Time())
	case KindString:
		a, _ := p.AsString()
		b, _ := other.AsString()
		return strings.Compare(a, b)
	case KindObject:
		a, _ := p.AsObject()
		b, _ := other.AsObject()
		ai, bi := "", ""
		if a != nil {
			ai = a.ObjectID()
		}
		if b != nil {
			bi = b.ObjectID()
		}
		return strings.Compare(ai, bi)
	default:
		return strings.Compare(p.String(), other.String())
	}
}

// String renders a debug form of the property, used in log lines.
func (p Property) String() string {
	switch p.kind {
	case KindNone:
		return "<none>"
	case KindBool:
		v, _ := p.AsBool()
		return fmt.Sprintf("%t", v)
	case KindID:
		v, _ := p.AsID()
		return v.String()
	case KindInt:
		v, _ := p.AsInt()
		return fmt.Sprintf("%d", v)
	case KindFloat:
		v, _ := p.AsFloat()
		return fmt.Sprintf("%g", v)
	case KindDuration:
		v, _ := p.AsDuration()
		return v.String()
	case KindTimestamp:
		v, _ := p.AsTimestamp()
		return v.String()
	case KindString:
		v, _ := p.AsString()
		return v
	case KindObject:
		v, _ := p.AsObject()
		if v == nil {
			return "<nil-object>"
		}
		return v.ObjectID()
	default:
		return fmt.Sprintf("%v", p.v)
	}
}
