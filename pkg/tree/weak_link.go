package tree

import (
	"weak"

	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

// weakHandle wraps weak.Pointer[Object], giving weak links a real
// non-owning reference instead of a hand-rolled finalizer simulation.
type weakHandle struct {
	ptr weak.Pointer[Object]
	set bool
}

func newWeakHandle(obj *Object) weakHandle {
	if obj == nil {
		return weakHandle{}
	}
	return weakHandle{ptr: weak.Make(obj), set: true}
}

func (w weakHandle) get() *Object {
	if !w.set {
		return nil
	}
	return w.ptr.Value()
}

// NewWeakLink creates a link that observes obj without extending its
// lifetime: once nothing else retains obj, Data returns LinkExpired.
func NewWeakLink(name string, obj *Object) *Link {
	li := newLinkImplBase(VariantWeak, name)
	li.weakRef = newWeakHandle(obj)
	return wrapLink(li)
}

// NewWeakLinkWithID creates a weak link like NewWeakLink but reuses id
// instead of minting a fresh one, used when reconstructing a link from
// a saved archive.
func NewWeakLinkWithID(id bsid.ID, name string, obj *Object) *Link {
	l := NewWeakLink(name, obj)
	l.impl.restoreID(id)
	return l
}

func (li *linkImpl) weakPullData() (*Object, error) {
	li.mu.RLock()
	w := li.weakRef
	li.mu.RUnlock()
	obj := w.get()
	if obj == nil {
		return nil, bserr.New(bserr.CodeLinkExpired)
	}
	return obj, nil
}

func (li *linkImpl) weakPullDataNode() (*Node, error) {
	obj, err := li.weakPullData()
	if err != nil {
		return nil, err
	}
	n, ok := obj.Node()
	if !ok {
		return nil, bserr.New(bserr.CodeNotANode)
	}
	return n, nil
}
