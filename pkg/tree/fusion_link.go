package tree

import (
	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

// Bridge supplies the actual I/O behind a fusion link: PullData/
// Populate run on the link's own actor, so a Bridge implementation may
// itself issue further blocking engine requests without deadlocking
// the caller.
type Bridge interface {
	PullData(link *Link, params *bsid.PropDict) (*Object, error)
	Populate(link *Link, params *bsid.PropDict) (*Node, error)
}

// NewFusionLink creates a link whose Data/DataNode delegate to bridge,
// re-invoked at most once per Busy->OK/Error transition. A nil bridge
// is inherited from the nearest ancestor fusion link at request time.
func NewFusionLink(name string, bridge Bridge, params *bsid.PropDict) *Link {
	li := newLinkImplBase(VariantFusion, name)
	li.bridge = bridge
	li.bridgeParams = params
	return wrapLink(li)
}

// SetBridge overrides the link's bridge, taking precedence over any
// inherited one.
func (l *Link) SetBridge(b Bridge) {
	l.impl.mu.Lock()
	l.impl.bridge = b
	l.impl.mu.Unlock()
}

// effectiveBridge returns the link's own bridge or, when none was set,
// the nearest ancestor fusion link's bridge found by walking the
// owner/handle chain upward.
func (li *linkImpl) effectiveBridge() (Bridge, error) {
	li.mu.RLock()
	b := li.bridge
	li.mu.RUnlock()
	if b != nil {
		return b, nil
	}
	for owner := li.Owner(); owner != nil; {
		h := owner.handle()
		if h == nil {
			break
		}
		if h.variant == VariantFusion {
			h.mu.RLock()
			hb := h.bridge
			h.mu.RUnlock()
			if hb != nil {
				return hb, nil
			}
		}
		owner = h.Owner()
	}
	return nil, bserr.New(bserr.CodeEmptyData).MarkQuiet()
}

func (li *linkImpl) fusionPullData() (*Object, error) {
	b, err := li.effectiveBridge()
	if err != nil {
		return nil, err
	}
	return b.PullData(wrapLink(li), li.bridgeParams)
}

func (li *linkImpl) fusionPullDataNode() (*Node, error) {
	b, err := li.effectiveBridge()
	if err != nil {
		return nil, err
	}
	n, err := b.Populate(wrapLink(li), li.bridgeParams)
	if err != nil {
		return nil, err
	}
	n.impl.claimHandle(li)
	return n, nil
}
