package tree

import (
	"github.com/bluesky-tree/bskernel/internal/logger"
	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

// Transaction is a user closure run atomically against an object
// through the process-wide queue. It returns an info dictionary on
// success.
type Transaction func(obj *Object) (*bsid.PropDict, error)

// NodeTransaction is the node-scoped counterpart.
type NodeTransaction func(n *Node) (*bsid.PropDict, error)

// Apply runs an object-scoped transaction: resolve the pointee,
// then run tr serialized on the transaction queue so it never races
// another transaction or an event handler. A reentrant call (tr calling
// Apply again) runs on a one-shot worker instead of deadlocking.
func (l *Link) Apply(tr Transaction) (*bsid.PropDict, error) {
	obj, err := l.Data(0)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, bserr.New(bserr.CodeTrEmptyTarget).MarkQuiet()
	}
	return Queue().Sync(func() (*bsid.PropDict, error) { return tr(obj) }, false)
}

// ApplyAsync runs tr for side effects only; a failure is logged and
// re-announced as a DataModified ack carrying {"error": message}.
func (l *Link) ApplyAsync(tr Transaction) {
	li := l.impl
	go func() {
		obj, err := l.Data(OptWaitIfBusy)
		if err != nil {
			logFireForgetError(li, err)
			return
		}
		if obj == nil {
			logFireForgetError(li, bserr.New(bserr.CodeTrEmptyTarget))
			return
		}
		Queue().Async(func() {
			if _, err := tr(obj); err != nil {
				if be, ok := err.(*bserr.Error); !ok || !be.Quiet {
					logger.Log("link %s: async transaction failed: %v", li.HomeID(), err)
				}
				params := bsid.NewPropDict().Set("error", bsid.Str(err.Error()))
				li.Home().Emit(Ack{Code: EvDataModified, Origin: li.ID(), Params: params})
			}
		})
	}()
}

// Apply runs tr serialized on the transaction queue against this node.
func (n *Node) Apply(tr NodeTransaction) (*bsid.PropDict, error) {
	return Queue().Sync(func() (*bsid.PropDict, error) { return tr(n) }, false)
}
