package tree

import (
	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

// NewSymLink creates a link whose Data/DataNode resolve path relative
// to whatever node the link is later inserted into. An unattached sym
// link (Owner() == nil) always fails with LinkBadPath.
func NewSymLink(name, path string) *Link {
	li := newLinkImplBase(VariantSym, name)
	li.symPath = path
	return wrapLink(li)
}

// NewSymLinkWithID creates a sym link like NewSymLink but reuses id
// instead of minting a fresh one, used when reconstructing a link from
// a saved archive.
func NewSymLinkWithID(id bsid.ID, name, path string) *Link {
	l := NewSymLink(name, path)
	l.impl.restoreID(id)
	return l
}

// Path returns the sym link's target path string.
func (l *Link) Path() string {
	l.impl.mu.RLock()
	defer l.impl.mu.RUnlock()
	return l.impl.symPath
}

// symResolveChain follows this sym link, and every sym link it in turn
// resolves to, until it reaches a non-sym link. visited is shared
// across the whole chain (not just one derefPath call) so a cycle
// routed through any number of intermediate symlinks fails closed
// instead of recursing forever.
func (li *linkImpl) symResolveChain(visited map[bsid.ID]bool) (*Link, error) {
	if len(visited) > activeSymlinkLimit || visited[li.ID()] {
		return nil, bserr.New(bserr.CodeLinkBadPath).MarkQuiet()
	}
	visited[li.ID()] = true

	owner := li.Owner()
	if owner == nil {
		return nil, bserr.New(bserr.CodeLinkBadPath).MarkQuiet()
	}
	li.mu.RLock()
	path := li.symPath
	li.mu.RUnlock()

	target, err := derefPath(owner, path, visited)
	if err != nil {
		return nil, err
	}
	if target.Variant() == VariantSym {
		return target.impl.symResolveChain(visited)
	}
	return target, nil
}

// CheckAlive probes whether a sym link currently resolves, without
// caching the result or disturbing the request state machine.
func (l *Link) CheckAlive() bool {
	if l.Variant() != VariantSym {
		return !l.IsNil()
	}
	_, err := l.impl.symResolveChain(make(map[bsid.ID]bool))
	return err == nil
}

func (li *linkImpl) symPullData() (*Object, error) {
	target, err := li.symResolveChain(make(map[bsid.ID]bool))
	if err != nil {
		return nil, err
	}
	return target.Data(OptErrorIfBusy)
}

func (li *linkImpl) symPullDataNode() (*Node, error) {
	target, err := li.symResolveChain(make(map[bsid.ID]bool))
	if err != nil {
		return nil, err
	}
	return target.DataNode(OptErrorIfBusy)
}
