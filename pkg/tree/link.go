package tree

import "github.com/bluesky-tree/bskernel/pkg/bsid"

// Link is the public handle applications hold for any link variant. It
// forwards to the shared linkImpl; variant constructors (NewHardLink,
// NewWeakLink, ...) are the only way to obtain one.
type Link struct {
	impl *linkImpl
}

func wrapLink(li *linkImpl) *Link { return &Link{impl: li} }

func (l *Link) ID() bsid.ID          { return l.impl.ID() }
func (l *Link) Name() string         { return l.impl.Name() }
func (l *Link) Variant() LinkVariant { return l.impl.Variant() }
func (l *Link) Flags() LinkFlags     { return l.impl.Flags() }
func (l *Link) SetFlags(f LinkFlags) { l.impl.SetFlags(f) }
func (l *Link) Inode() *Inode        { return l.impl.Inode() }
func (l *Link) Home() *EventGroup    { return l.impl.Home() }

// OID returns the pointee object's instance ID, or "" when the pointee
// can't be resolved without blocking.
func (l *Link) OID() string { return l.impl.OID() }

// OTID returns the pointee object's type ID, or "".
func (l *Link) OTID() string { return l.impl.OTID() }

// Rename changes the link's name, returning 1 if it actually changed.
func (l *Link) Rename(newName string) int { return l.impl.rename(newName) }

// Status reports the current state of the given request, without
// blocking.
func (l *Link) Status(req ReqKind) Status { return l.impl.Status(req) }

// RsReset unconditionally forces the request's status, dropping any
// cached result. A silent reset suppresses the LinkStatusChanged ack.
func (l *Link) RsReset(req ReqKind, newStatus Status, silent bool) {
	l.impl.RsReset(req, newStatus, silent)
}

// RsResetIfEq sets the request's status to newStatus only when the
// current status equals cmp, returning the status now in effect.
func (l *Link) RsResetIfEq(req ReqKind, cmp, newStatus Status, silent bool) Status {
	return l.impl.RsResetIfEq(req, cmp, newStatus, silent)
}

// RsResetIfNeq is the mirror of RsResetIfEq: the reset applies only
// when the current status differs from cmp.
func (l *Link) RsResetIfNeq(req ReqKind, cmp, newStatus Status, silent bool) Status {
	return l.impl.RsResetIfNeq(req, cmp, newStatus, silent)
}

// Data resolves the link's pointee object.
func (l *Link) Data(opts ReqOpts) (*Object, error) { return l.impl.Data(opts) }

// DataAsync resolves the pointee object without blocking the caller.
func (l *Link) DataAsync(opts ReqOpts, cb func(*Object, error)) { l.impl.DataAsync(opts, cb) }

// DataNode resolves the pointee object as a node, failing with
// NotANode if the pointee isn't one.
func (l *Link) DataNode(opts ReqOpts) (*Node, error) { return l.impl.DataNode(opts) }

// DataNodeAsync resolves the pointee node without blocking the caller.
func (l *Link) DataNodeAsync(opts ReqOpts, cb func(*Node, error)) {
	l.impl.DataNodeAsync(opts, cb)
}

// Owner returns the node this link is currently inserted into, if any.
func (l *Link) Owner() *Node {
	ni := l.impl.Owner()
	if ni == nil {
		return nil
	}
	return &Node{impl: ni}
}

// Subscribe registers handler against this link's home event group.
func (l *Link) Subscribe(mask EventMask, handler Handler) SubscriptionID {
	return l.impl.Home().Subscribe(mask, handler)
}

// Unsubscribe removes a handler previously registered with Subscribe.
func (l *Link) Unsubscribe(id SubscriptionID) { l.impl.Home().Unsubscribe(id) }

// Bye announces graceful shutdown of the link.
func (l *Link) Bye() { l.impl.Bye() }
