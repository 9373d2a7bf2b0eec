package tree

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluesky-tree/bskernel/internal/logger"
	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

// TimeoutInfinite disables the deadline on blocking requests.
const TimeoutInfinite = time.Duration(-1)

var defTimeout atomic.Int64

func init() { defTimeout.Store(int64(TimeoutInfinite)) }

// SetDefTimeout installs the process-wide deadline applied to every
// blocking request that parks on a Busy slot. TimeoutInfinite (the
// initial value) disables it.
func SetDefTimeout(d time.Duration) { defTimeout.Store(int64(d)) }

// DefTimeout returns the current process-wide request deadline.
func DefTimeout() time.Duration { return time.Duration(defTimeout.Load()) }

// waitGate parks until the Busy gate closes or the process-wide
// deadline expires. Timeout yields an error, never a hang; the worker
// keeps running and its eventual result is simply discarded by this
// caller.
func waitGate(gate chan struct{}) error {
	d := DefTimeout()
	if d < 0 {
		<-gate
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-time.After(d):
		return bserr.New(bserr.CodeTimeout).MarkQuiet()
	}
}

// LinkVariant discriminates the five link behaviors (hard, weak, sym,
// fusion, map), replacing a class hierarchy with a tagged variant over
// a common impl.
type LinkVariant int

const (
	VariantHard LinkVariant = iota
	VariantWeak
	VariantSym
	VariantFusion
	VariantMap
)

func (v LinkVariant) String() string {
	switch v {
	case VariantHard:
		return "hard"
	case VariantWeak:
		return "weak"
	case VariantSym:
		return "sym"
	case VariantFusion:
		return "fusion"
	case VariantMap:
		return "map"
	default:
		return "unknown"
	}
}

// LinkFlags is the per-link bitfield.
type LinkFlags uint32

const (
	FlagPlain LinkFlags = 1 << iota
	FlagPersistent
	FlagDisabled
	FlagNil
)

// ReqOpts tunes a single Data/DataNode request.
type ReqOpts uint32

const (
	OptHasDataCache ReqOpts = 1 << iota
	OptWaitIfBusy
	OptErrorIfBusy
	OptDetached
	OptTrackWorkers
	OptSilent // suppress the LinkStatusChanged ack
)

// linkImpl is the mutable interior shared by every link variant. The
// variant-specific fields below are populated only for their own
// variant; dispatch happens in runJob by switching on variant.
type linkImpl struct {
	*engineBase

	mu      sync.RWMutex
	variant LinkVariant
	name    string
	flags   LinkFlags
	owner   *nodeImpl // the node containing this link, nil if none
	inode   *Inode

	dataSlot     requestSlot
	dataNodeSlot requestSlot

	// hard
	hardObj *Object
	// weak — Go 1.24's weak.Pointer gives us a real non-owning
	// reference instead of hand-rolling one with finalizers.
	weakRef weakHandle
	// sym
	symPath string
	// fusion
	fusionObj    *Object
	bridge       Bridge
	bridgeParams *bsid.PropDict
	// map
	mapState *mapLinkState
}

func newLinkImplBase(variant LinkVariant, name string) *linkImpl {
	li := &linkImpl{
		engineBase: newEngineBase("link/"+variant.String(), mailboxCapacity()),
		variant:    variant,
		name:       name,
		flags:      FlagPlain,
	}
	return li
}

func (li *linkImpl) ID() bsid.ID          { return li.engineBase.ID() }
func (li *linkImpl) Variant() LinkVariant { return li.variant }

func (li *linkImpl) Name() string {
	li.mu.RLock()
	defer li.mu.RUnlock()
	return li.name
}

// rename returns 1 if the name changed, 0 if new equals the current
// name, matching node_impl's rename idempotence.
func (li *linkImpl) rename(newName string) int {
	li.mu.Lock()
	old := li.name
	if old == newName {
		li.mu.Unlock()
		return 0
	}
	li.name = newName
	li.mu.Unlock()

	params := bsid.NewPropDict().Set("new_name", bsid.Str(newName)).Set("prev_name", bsid.Str(old))
	li.Home().Emit(Ack{Code: EvLinkRenamed, Origin: li.ID(), Params: params})
	return 1
}

func (li *linkImpl) Flags() LinkFlags {
	li.mu.RLock()
	defer li.mu.RUnlock()
	return li.flags
}

func (li *linkImpl) SetFlags(f LinkFlags) {
	li.mu.Lock()
	li.flags = f
	li.mu.Unlock()
}

func (li *linkImpl) Owner() *nodeImpl {
	li.mu.RLock()
	defer li.mu.RUnlock()
	return li.owner
}

func (li *linkImpl) setOwner(n *nodeImpl) {
	li.mu.Lock()
	li.owner = n
	li.mu.Unlock()
}

func (li *linkImpl) Inode() *Inode {
	li.mu.RLock()
	defer li.mu.RUnlock()
	return li.inode
}

func (li *linkImpl) slot(kind ReqKind) *requestSlot {
	if kind == ReqData {
		return &li.dataSlot
	}
	return &li.dataNodeSlot
}

// Status returns the current status of req without blocking.
func (li *linkImpl) Status(req ReqKind) Status {
	st, _, _, _ := li.slot(req).snapshot()
	return st
}

// RsReset unconditionally forces the request's status.
func (li *linkImpl) RsReset(req ReqKind, newStatus Status, silent bool) {
	prev := li.Status(req)
	li.slot(req).reset(newStatus)
	if !silent {
		li.emitStatusChanged(req, prev, newStatus)
	}
}

// RsResetIfEq resets the request's status only when it equals cmp.
func (li *linkImpl) RsResetIfEq(req ReqKind, cmp, newStatus Status, silent bool) Status {
	prev := li.Status(req)
	cur := li.slot(req).resetIfEq(cmp, newStatus)
	if !silent && cur == newStatus && prev == cmp {
		li.emitStatusChanged(req, prev, cur)
	}
	return cur
}

// RsResetIfNeq is the mirror of RsResetIfEq.
func (li *linkImpl) RsResetIfNeq(req ReqKind, cmp, newStatus Status, silent bool) Status {
	prev := li.Status(req)
	cur := li.slot(req).resetIfNeq(cmp, newStatus)
	if !silent && cur == newStatus && prev != cmp {
		li.emitStatusChanged(req, prev, cur)
	}
	return cur
}

func (li *linkImpl) emitStatusChanged(req ReqKind, prev, cur Status) {
	params := bsid.NewPropDict().
		Set("request", bsid.Str(req.String())).
		Set("new_status", bsid.Str(cur.String())).
		Set("prev_status", bsid.Str(prev.String()))
	li.Home().Emit(Ack{Code: EvLinkStatusChanged, Origin: li.ID(), Params: params})
}

// request drives the execution discipline common to every variant:
// fast path on cached OK, park on Busy, otherwise run job exclusively
// on this link's actor.
func (li *linkImpl) request(kind ReqKind, opts ReqOpts, job func() (any, error)) (any, error) {
	slot := li.slot(kind)

	status, result, err, gate := slot.snapshot()
	if status == StatusOK {
		return result, err
	}
	if status == StatusBusy {
		if opts&OptErrorIfBusy != 0 {
			return nil, bserr.New(bserr.CodeTimeout).MarkQuiet()
		}
		if werr := waitGate(gate); werr != nil {
			return nil, werr
		}
		_, result, err, _ = slot.snapshot()
		return result, err
	}

	newGate, started := slot.beginBusy()
	if !started {
		// Lost the race to another caller that just started the job.
		if werr := waitGate(newGate); werr != nil {
			return nil, werr
		}
		_, result, err, _ = slot.snapshot()
		return result, err
	}
	if opts&OptSilent == 0 {
		li.emitStatusChanged(kind, status, StatusBusy)
	}

	runJob := func() {
		res, jerr := bserr.SafeValue(job)
		prev := slot.complete(res, jerr)
		_ = prev
		if opts&OptSilent == 0 {
			final := StatusOK
			if jerr != nil {
				final = StatusError
			}
			li.emitStatusChanged(kind, StatusBusy, final)
		}
		if kind == ReqData && jerr == nil {
			params := bsid.NewPropDict()
			li.Home().Emit(Ack{Code: EvDataModified, Origin: li.ID(), Params: params})
		}
	}

	// The job always runs on the link's own actor; the starter parks on
	// the same gate every other waiter does, so a timeout abandons the
	// worker rather than interrupting it.
	li.RawActor().Cast(runJob)
	if werr := waitGate(newGate); werr != nil {
		return nil, werr
	}
	_, result, err, _ = slot.snapshot()
	return result, err
}

// Data is the synchronous blocking form of the Data request.
func (li *linkImpl) Data(opts ReqOpts) (*Object, error) {
	v, err := li.request(ReqData, opts, func() (any, error) { return li.pullData() })
	if err != nil {
		return nil, err
	}
	obj, _ := v.(*Object)
	return obj, nil
}

// DataAsync is the callback form of Data. A nil cb makes the call
// fire-and-forget: an error is logged and re-announced as a
// DataModified ack carrying {"error": message}.
func (li *linkImpl) DataAsync(opts ReqOpts, cb func(*Object, error)) {
	go func() {
		obj, err := li.Data(opts | OptWaitIfBusy)
		if cb != nil {
			cb(obj, err)
			return
		}
		if err != nil {
			logFireForgetError(li, err)
		}
	}()
}

func logFireForgetError(li *linkImpl, err error) {
	if be, ok := err.(*bserr.Error); !ok || !be.Quiet {
		logger.Log("link %s: background request failed: %v", li.HomeID(), err)
	}
	params := bsid.NewPropDict().Set("error", bsid.Str(err.Error()))
	li.Home().Emit(Ack{Code: EvDataModified, Origin: li.ID(), Params: params})
}

// OID returns the pointee object's instance ID, or ""
// when the pointee can't be resolved without blocking.
func (li *linkImpl) OID() string {
	obj, err := li.Data(OptErrorIfBusy | OptSilent)
	if err != nil || obj == nil {
		return ""
	}
	return obj.ObjectID()
}

// OTID returns the pointee object's type ID, or "".
func (li *linkImpl) OTID() string {
	obj, err := li.Data(OptErrorIfBusy | OptSilent)
	if err != nil || obj == nil {
		return ""
	}
	return obj.TypeID()
}

// SetInode attaches POSIX-like metadata to the link.
func (li *linkImpl) SetInode(in *Inode) {
	li.mu.Lock()
	li.inode = in
	li.mu.Unlock()
}

// DataNode is the synchronous blocking form of the DataNode request.
func (li *linkImpl) DataNode(opts ReqOpts) (*Node, error) {
	v, err := li.request(ReqDataNode, opts, func() (any, error) { return li.pullDataNode() })
	if err != nil {
		return nil, err
	}
	n, _ := v.(*Node)
	return n, nil
}

// DataNodeAsync is the callback form of DataNode.
func (li *linkImpl) DataNodeAsync(opts ReqOpts, cb func(*Node, error)) {
	go func() {
		n, err := li.DataNode(opts | OptWaitIfBusy)
		cb(n, err)
	}()
}

// Bye sends the link's graceful-shutdown ack (EvLinkDeleted) to its
// home group. It does not stop the link's actor.
func (li *linkImpl) Bye() {
	li.Home().Emit(Ack{Code: EvLinkDeleted, Origin: li.ID(), Params: bsid.NewPropDict()})
}

// pullData dispatches to the variant-specific data job. This is the
// body that runs exclusively on the link's own actor while the slot is
// Busy.
func (li *linkImpl) pullData() (*Object, error) {
	switch li.variant {
	case VariantHard:
		return li.hardPullData()
	case VariantWeak:
		return li.weakPullData()
	case VariantSym:
		return li.symPullData()
	case VariantFusion:
		return li.fusionPullData()
	case VariantMap:
		return li.mapPullData()
	default:
		return nil, bserr.New(bserr.CodeLinkBadPath)
	}
}

// pullDataNode dispatches to the variant-specific data-node job.
func (li *linkImpl) pullDataNode() (*Node, error) {
	switch li.variant {
	case VariantHard:
		return li.hardPullDataNode()
	case VariantWeak:
		return li.weakPullDataNode()
	case VariantSym:
		return li.symPullDataNode()
	case VariantFusion:
		return li.fusionPullDataNode()
	case VariantMap:
		return li.mapPullDataNode()
	default:
		return nil, bserr.New(bserr.CodeLinkBadPath)
	}
}
