// Package bsid provides the identifier and value primitives shared by
// every link and node in the tree: 128-bit link IDs, timestamps, and
// the tagged property union used as event and transaction payload.
package bsid

import (
	"time"

	"github.com/google/uuid"
)

// ID is a 128-bit universally-unique link or node identifier.
type ID uuid.UUID

// Nil is the reserved, never-assigned ID.
var Nil ID

// NewID generates a fresh random ID.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical string form of an ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, err
	}
	return ID(u), nil
}

// String returns the canonical dashed hex form, e.g.
// "f47ac10b-58cc-4372-a567-0e02b2c3d479".
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Bytes returns the raw 16-byte form of id.
func (id ID) Bytes() []byte {
	u := uuid.UUID(id)
	return u[:]
}

// IDFromBytes reconstructs an ID from its raw 16-byte form.
func IDFromBytes(b []byte) (ID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return Nil, err
	}
	return ID(u), nil
}

// IsNil reports whether id is the reserved nil value.
func (id ID) IsNil() bool {
	return id == Nil
}

// HomeID returns the string form of id used as the name of the local
// event group for the link or node owning this ID.
func (id ID) HomeID() string {
	return id.String()
}

// Timestamp is a nanosecond-resolution point in time, stored as a
// property alternative distinct from a Duration.
type Timestamp time.Time

// Now returns the current time as a Timestamp.
func Now() Timestamp { return Timestamp(time.Now()) }

func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) String() string { return time.Time(t).Format(time.RFC3339Nano) }
