package archive

import (
	"encoding/json"
	"sync"

	"github.com/bluesky-tree/bskernel/pkg/bserr"
)

// Formatter converts an object's payload to and from bytes. Types with
// no registered formatter can still be saved as bare nodes (no
// payload), but saving one with a non-nil payload and no formatter
// fails with MissingFormatter.
type Formatter interface {
	Marshal(payload any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// DefaultFormatterName is the name Register files a formatter under
// when the caller doesn't care about alternate encodings.
const DefaultFormatterName = "bin"

// FormatterRegistry maps object type IDs to named Formatters. A type
// may carry several named encodings; the active one is what the writer
// uses, and each saved payload records the name it was encoded with so
// the reader can pick the matching decoder regardless of what is
// active at load time.
type FormatterRegistry struct {
	mu     sync.RWMutex
	m      map[string]map[string]Formatter
	active map[string]string
}

func NewFormatterRegistry() *FormatterRegistry {
	return &FormatterRegistry{
		m:      make(map[string]map[string]Formatter),
		active: make(map[string]string),
	}
}

// Register files f under the default formatter name and makes it the
// active encoding for typeID.
func (r *FormatterRegistry) Register(typeID string, f Formatter) {
	r.RegisterNamed(typeID, DefaultFormatterName, f)
	r.SetActive(typeID, DefaultFormatterName)
}

// RegisterNamed files f under name for typeID. The first registration
// for a type becomes active automatically.
func (r *FormatterRegistry) RegisterNamed(typeID, name string, f Formatter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m[typeID] == nil {
		r.m[typeID] = make(map[string]Formatter)
	}
	r.m[typeID][name] = f
	if _, ok := r.active[typeID]; !ok {
		r.active[typeID] = name
	}
}

// SetActive selects which named encoding the writer uses for typeID,
// reporting whether that name is actually registered.
func (r *FormatterRegistry) SetActive(typeID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[typeID][name]; !ok {
		return false
	}
	r.active[typeID] = name
	return true
}

// Active returns the active formatter for typeID and its name.
func (r *FormatterRegistry) Active(typeID string) (Formatter, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.active[typeID]
	if !ok {
		return nil, "", false
	}
	f, ok := r.m[typeID][name]
	return f, name, ok
}

// GetNamed returns the formatter filed under name for typeID.
func (r *FormatterRegistry) GetNamed(typeID, name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.m[typeID][name]
	return f, ok
}

// Get returns typeID's active formatter.
func (r *FormatterRegistry) Get(typeID string) (Formatter, bool) {
	f, _, ok := r.Active(typeID)
	return f, ok
}

func (r *FormatterRegistry) mustActive(typeID string) (Formatter, string, error) {
	f, name, ok := r.Active(typeID)
	if !ok {
		return nil, "", bserr.New(bserr.CodeMissingFormatter).MarkQuiet()
	}
	return f, name, nil
}

// decoderFor resolves the formatter a payload was saved with, falling
// back to the type's active one for archives written before names were
// recorded.
func (r *FormatterRegistry) decoderFor(typeID, name string) (Formatter, error) {
	if name != "" {
		if f, ok := r.GetNamed(typeID, name); ok {
			return f, nil
		}
	}
	f, _, ok := r.Active(typeID)
	if !ok {
		return nil, bserr.New(bserr.CodeMissingFormatter).MarkQuiet()
	}
	return f, nil
}

// BytesFormatter is the identity formatter for []byte payloads, the
// common case for leaf objects holding raw content.
type BytesFormatter struct{}

func (BytesFormatter) Marshal(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	b, ok := payload.([]byte)
	if !ok {
		return nil, bserr.New(bserr.CodeBadObject).MarkQuiet()
	}
	return b, nil
}

func (BytesFormatter) Unmarshal(data []byte) (any, error) { return data, nil }

// JSONFormatter round-trips any JSON-encodable payload, decoding back
// into the generic any form.
type JSONFormatter struct{}

func (JSONFormatter) Marshal(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	return json.Marshal(payload)
}

func (JSONFormatter) Unmarshal(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, bserr.Wrap(bserr.CodeBadObject, err)
	}
	return v, nil
}
