package tree

// Clone returns a new link with a fresh ID carrying the
// same name, flags and inode. A shallow clone shares the pointee
// object; deep additionally clones the pointee (and, for node-backed
// objects, the whole subtree, link by link).
func (l *Link) Clone(deep bool) *Link {
	li := l.impl
	li.mu.RLock()
	variant := li.variant
	name := li.name
	flags := li.flags
	inode := li.inode
	li.mu.RUnlock()

	var out *Link
	switch variant {
	case VariantHard:
		obj := li.hardObj
		if deep && obj != nil {
			obj = cloneObject(obj)
		}
		out = NewHardLink(name, obj)
	case VariantWeak:
		out = NewWeakLink(name, li.weakRef.get())
	case VariantSym:
		out = NewSymLink(name, l.Path())
	case VariantFusion:
		obj := li.fusionObj
		if deep && obj != nil {
			obj = cloneObject(obj)
		}
		nl := NewFusionLink(name, li.bridge, li.bridgeParams)
		nl.impl.fusionObj = obj
		out = nl
	case VariantMap:
		ms := li.mapState
		if ms.mode == MapModeNode {
			out = NewMapLinkNode(ms.nodeMapper, name, ms.input, ms.updateOn, ms.opts)
		} else {
			out = NewMapLink(ms.linkMapper, name, ms.input, ms.updateOn, ms.opts)
		}
	default:
		out = NilLink()
	}
	out.SetFlags(flags)
	out.impl.SetInode(inode)
	return out
}

// cloneObject copies obj with a fresh instance ID. Node-backed objects
// get their subtree cloned recursively.
func cloneObject(obj *Object) *Object {
	n, ok := obj.Node()
	if !ok {
		return obj.Clone()
	}
	return NewObjectNode(obj.TypeID(), cloneNode(n))
}

func cloneNode(n *Node) *Node {
	out := NewNode()
	for _, l := range n.impl.snapshotLinks() {
		if _, err := out.Insert(l.Clone(true), AllowDupNames); err != nil {
			continue
		}
	}
	return out
}
