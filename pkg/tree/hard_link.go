package tree

import (
	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

// NewHardLink creates a link that owns obj for as long as the link
// exists: Data/DataNode never block because the object is already
// resident.
func NewHardLink(name string, obj *Object) *Link {
	li := newLinkImplBase(VariantHard, name)
	li.hardObj = obj
	if obj != nil {
		obj.Retain()
	}
	li.dataSlot.presetOK(obj)
	if obj != nil {
		if n, ok := obj.Node(); ok {
			li.dataNodeSlot.presetOK(n)
		}
	}
	return wrapLink(li)
}

// NewHardLinkWithID creates a hard link like NewHardLink but reuses id
// instead of minting a fresh one, used when reconstructing a link from
// a saved archive.
func NewHardLinkWithID(id bsid.ID, name string, obj *Object) *Link {
	l := NewHardLink(name, obj)
	l.impl.restoreID(id)
	return l
}

func (li *linkImpl) hardPullData() (*Object, error) {
	li.mu.RLock()
	obj := li.hardObj
	li.mu.RUnlock()
	if obj == nil {
		return nil, bserr.New(bserr.CodeEmptyData)
	}
	return obj, nil
}

func (li *linkImpl) hardPullDataNode() (*Node, error) {
	obj, err := li.hardPullData()
	if err != nil {
		return nil, err
	}
	n, ok := obj.Node()
	if !ok {
		return nil, bserr.New(bserr.CodeNotANode)
	}
	return n, nil
}
