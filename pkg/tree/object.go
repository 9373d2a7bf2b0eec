package tree

import (
	"sync"
	"sync/atomic"

	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

// Inode carries POSIX-like metadata attached to an Object.
type Inode struct {
	Owner   string
	Group   string
	ModTime bsid.Timestamp
	Perm    uint16 // 9 permission bits
	Special uint8  // 3 special bits (setuid/setgid/sticky)
}

// Object is a reference-countable payload with a type ID and an
// instance ID. A distinguished variant, ObjectNode, additionally
// carries a *Node and reports IsNode() == true.
type Object struct {
	refs    int32
	typeID  string
	instID  string
	inode   *Inode
	mu      sync.RWMutex
	node    *Node // non-nil only for object-node instances
	payload any   // user payload for non-node objects
	loader  func() (any, error)
}

// NewObject creates a plain (non-node) object of typeID with a fresh
// instance ID derived from a new link ID.
func NewObject(typeID string, payload any) *Object {
	return &Object{
		refs:    1,
		typeID:  typeID,
		instID:  bsid.NewID().String(),
		payload: payload,
	}
}

// NewObjectWithID creates a plain object with an explicit instance ID.
func NewObjectWithID(typeID, instID string, payload any) *Object {
	return &Object{refs: 1, typeID: typeID, instID: instID, payload: payload}
}

// NewObjectNode creates the distinguished object-node variant wrapping n.
func NewObjectNode(typeID string, n *Node) *Object {
	return NewObjectNodeWithID(typeID, bsid.NewID().String(), n)
}

// NewObjectNodeWithID creates the object-node variant like NewObjectNode
// but reuses instID instead of minting a fresh one, used when
// reconstructing a node's wrapping object from a saved archive.
func NewObjectNodeWithID(typeID, instID string, n *Node) *Object {
	o := &Object{refs: 1, typeID: typeID, instID: instID, node: n}
	n.impl.setHandleObject(o)
	return o
}

func (o *Object) ObjectID() string { return o.instID }
func (o *Object) TypeID() string   { return o.typeID }
func (o *Object) IsNode() bool     { return o.node != nil }

// Node returns the contained node and true for an object-node variant,
// else (nil, false).
func (o *Object) Node() (*Node, bool) {
	if o.node == nil {
		return nil, false
	}
	return o.node, true
}

func (o *Object) Payload() any {
	_ = o.EnsureLoaded()
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.payload
}

// SetLoader installs a deferred payload source, used by archive
// readers loading lazily: the loader runs on the first Payload or
// EnsureLoaded call, and again on later calls only while it keeps
// failing.
func (o *Object) SetLoader(fn func() (any, error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loader = fn
}

// EnsureLoaded runs the deferred loader, if one is pending, and stores
// its result as the payload. A failed load keeps the loader so a later
// call can retry.
func (o *Object) EnsureLoaded() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loader == nil {
		return nil
	}
	p, err := o.loader()
	if err != nil {
		return err
	}
	o.payload = p
	o.loader = nil
	return nil
}

func (o *Object) SetPayload(p any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.payload = p
}

func (o *Object) Inode() *Inode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.inode
}

func (o *Object) SetInode(in *Inode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inode = in
}

// Retain/Release implement the reference-countable handle: NewHardLink
// Retains the object it is given, and no link impl calls Release;
// Release returning true means the object just hit zero refs.
func (o *Object) Retain() { atomic.AddInt32(&o.refs, 1) }

func (o *Object) Release() bool {
	return atomic.AddInt32(&o.refs, -1) == 0
}

func (o *Object) RefCount() int32 { return atomic.LoadInt32(&o.refs) }

// Clone produces a new Object of the same type with a fresh instance
// ID, copying the payload value shallowly but not the node subtree;
// Link.Clone(true) is the way to copy a whole subtree.
func (o *Object) Clone() *Object {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return &Object{
		refs:    1,
		typeID:  o.typeID,
		instID:  bsid.NewID().String(),
		inode:   o.inode,
		payload: o.payload,
	}
}

// Factory constructs Objects of registered types by name: a
// type-factory keyed on the type name, with default construction and
// string-ID construction (copying an existing object is Object.Clone).
type Factory struct {
	mu   sync.RWMutex
	ctor map[string]func(instID string) any
}

func NewFactory() *Factory { return &Factory{ctor: make(map[string]func(instID string) any)} }

// Register adds a constructor for typeID. ctor receives the instance
// ID it should use (the factory itself generates one for default
// construction).
func (f *Factory) Register(typeID string, ctor func(instID string) any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctor[typeID] = ctor
}

// New default-constructs an object of typeID.
func (f *Factory) New(typeID string) (*Object, bool) {
	return f.NewWithID(typeID, bsid.NewID().String())
}

// NewWithID constructs an object of typeID using the given instance ID.
func (f *Factory) NewWithID(typeID, instID string) (*Object, bool) {
	f.mu.RLock()
	ctor, ok := f.ctor[typeID]
	f.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return NewObjectWithID(typeID, instID, ctor(instID)), true
}
