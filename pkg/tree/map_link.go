package tree

import "github.com/bluesky-tree/bskernel/pkg/bsid"

// MapMode selects what a map link's mapper operates on.
type MapMode int

const (
	MapModeLink MapMode = iota // mapper runs per input entry
	MapModeNode                // mapper runs once over the whole input node
)

// MapAction tells a link mapper whether to keep or drop a mapped entry.
type MapAction int

const (
	MapKeep MapAction = iota
	MapSkip
)

// MapLinkFunc transforms one input entry into zero or one output
// entries. src is the input link the triggering ack refers to, output
// is the link's persistent output node, ev is the ack that triggered
// the call (EvNil on the initial build), and origin is the map link
// itself. Returning (l, MapKeep) installs l as src's mirrored entry,
// replacing any previous one; MapSkip removes it.
type MapLinkFunc func(src *Link, output *Node, ev Ack, origin *Link) (*Link, MapAction)

// MapNodeFunc updates output from input wholesale. Unlike a link
// mapper it owns the output node's contents and may update it
// incrementally based on ev.
type MapNodeFunc func(input, output *Node, ev Ack, origin *Link) error

// MapOpts tunes a map link's refresh behavior.
type MapOpts uint32

const (
	MapOptDeep           MapOpts = 1 << iota // also refresh on subtree (deep) acks
	MapOptMuteOutputNode                     // don't forward output-node acks to the link's home
	MapOptTrackWorkers
	MapOptClearDirs // node mode: clear output before each mapper run
)

// mapLinkState is the map variant's interior: the input node under
// observation, the mapper, and the persistent output node the link
// owns. The output keeps its identity across refreshes so consumers
// holding the node see updates in place.
type mapLinkState struct {
	mode       MapMode
	input      *Node
	linkMapper MapLinkFunc
	nodeMapper MapNodeFunc
	updateOn   EventMask
	opts       MapOpts
	output     *Node
	sub        SubscriptionID

	// outIDs maps each input entry's link ID to the ID of its mirrored
	// output entry, so an event touches only its own output link.
	outIDs map[bsid.ID]bsid.ID

	// refreshed flips on the first DataNode build; until then input
	// acks need no action because the first build scans everything.
	refreshed bool
}

// NewMapLink creates a link whose DataNode is the persistent output
// node produced by running mapper over every input entry. After the
// first build, each ack matching updateOn (0 means every code) from
// input's home group re-maps only the entry the ack refers to — the
// link's "retranslator" subscription.
func NewMapLink(mapper MapLinkFunc, name string, input *Node, updateOn EventMask, opts MapOpts) *Link {
	li := newLinkImplBase(VariantMap, name)
	li.mapState = &mapLinkState{
		mode:       MapModeLink,
		input:      input,
		linkMapper: mapper,
		updateOn:   updateOn,
		opts:       opts,
		outIDs:     make(map[bsid.ID]bsid.ID),
	}
	li.setupMapLink()
	return wrapLink(li)
}

// NewMapLinkNode creates a map link whose output is maintained
// wholesale by mapper (Mode == MapModeNode).
func NewMapLinkNode(mapper MapNodeFunc, name string, input *Node, updateOn EventMask, opts MapOpts) *Link {
	li := newLinkImplBase(VariantMap, name)
	li.mapState = &mapLinkState{mode: MapModeNode, input: input, nodeMapper: mapper, updateOn: updateOn, opts: opts}
	li.setupMapLink()
	return wrapLink(li)
}

// setupMapLink creates the persistent output node, claims it, and
// installs the retranslator subscription on the input node's home.
func (li *linkImpl) setupMapLink() {
	ms := li.mapState
	ms.output = NewNode()

	ms.output.impl.mu.Lock()
	ms.output.impl.handleLink = li
	ms.output.impl.mu.Unlock()
	if ms.opts&MapOptMuteOutputNode == 0 {
		ms.output.impl.Home().AddForward(li.Home())
	}

	mask := ms.updateOn
	if mask == 0 {
		mask = EvAll
	}
	if ms.opts&MapOptDeep != 0 {
		mask |= EvDeepRename | EvDeepStatus | EvDeepData
	}
	ms.sub = ms.input.Home().Subscribe(mask, func(ev Ack) {
		li.RawActor().Cast(func() { li.mapOnEvent(ev) })
	})
}

// mapOnEvent runs on the link's own actor for every retranslated input
// ack. Before the first DataNode build there is nothing to maintain.
func (li *linkImpl) mapOnEvent(ev Ack) {
	ms := li.mapState
	if !ms.refreshed {
		return
	}
	var (
		changed bool
		err     error
	)
	switch ms.mode {
	case MapModeNode:
		if ms.opts&MapOptClearDirs != 0 {
			ms.output.Clear()
		}
		err = ms.nodeMapper(ms.input, ms.output, ev, wrapLink(li))
		changed = true
	default:
		changed, err = li.mapApplyEvent(ev)
	}
	if err != nil {
		logFireForgetError(li, err)
		return
	}
	if changed {
		li.Home().Emit(Ack{Code: EvDataNodeModified, Origin: li.ID(), Params: bsid.NewPropDict()})
	}
}

// mapEventSource extracts the input-entry link ID an ack refers to:
// node-level acks (insert, erase) carry it in the "link_id" param,
// link-level acks (rename, status, data) are emitted by the entry
// itself.
func mapEventSource(ev Ack) bsid.ID {
	if p, ok := ev.Params.Get("link_id"); ok {
		if id, ok := p.AsID(); ok {
			return id
		}
	}
	return ev.Origin
}

// mapApplyEvent re-maps the single input entry ev refers to, leaving
// every other output entry untouched. A source that no longer resolves
// (erased or deleted) just drops its mirrored entry. Always called
// from the link's actor, so updates never overlap.
func (li *linkImpl) mapApplyEvent(ev Ack) (changed bool, err error) {
	ms := li.mapState
	srcID := mapEventSource(ev)
	prev, had := ms.outIDs[srcID]

	src, ok := ms.input.FindID(srcID)
	if !ok {
		if had {
			ms.output.EraseByID(prev)
			delete(ms.outIDs, srcID)
		}
		return had, nil
	}

	mapped, action := ms.linkMapper(src, ms.output, ev, wrapLink(li))
	if action == MapSkip || mapped == nil {
		if had {
			ms.output.EraseByID(prev)
			delete(ms.outIDs, srcID)
		}
		return had, nil
	}
	if had && prev == mapped.ID() {
		// Mapper updated the existing output entry in place.
		return true, nil
	}
	if had {
		ms.output.EraseByID(prev)
		delete(ms.outIDs, srcID)
	}
	if _, err := ms.output.Insert(mapped, AllowDupNames); err != nil {
		return true, err
	}
	ms.outIDs[srcID] = mapped.ID()
	return true, nil
}

// mapRebuild runs the link mapper over every input entry into the
// cleared output node, seeding the input-to-output ID index the
// per-event path maintains afterwards.
func (li *linkImpl) mapRebuild(ev Ack) error {
	ms := li.mapState
	ms.output.Clear()
	ms.outIDs = make(map[bsid.ID]bsid.ID)
	origin := wrapLink(li)
	for _, src := range ms.input.impl.snapshotLinks() {
		mapped, action := ms.linkMapper(src, ms.output, ev, origin)
		if action == MapSkip || mapped == nil {
			continue
		}
		if _, err := ms.output.Insert(mapped, AllowDupNames); err != nil {
			return err
		}
		ms.outIDs[src.ID()] = mapped.ID()
	}
	return nil
}

// mapPullDataNode backs the map variant's DataNode: the first pull
// builds the output from the whole input, later pulls return the
// output node the event path has been maintaining.
func (li *linkImpl) mapPullDataNode() (*Node, error) {
	ms := li.mapState
	if ms.refreshed {
		return ms.output, nil
	}
	ev := Ack{Code: EvNil, Origin: li.ID(), Params: bsid.NewPropDict()}
	var err error
	switch ms.mode {
	case MapModeNode:
		if ms.opts&MapOptClearDirs != 0 {
			ms.output.Clear()
		}
		err = ms.nodeMapper(ms.input, ms.output, ev, wrapLink(li))
	default:
		err = li.mapRebuild(ev)
	}
	if err != nil {
		return nil, err
	}
	ms.refreshed = true
	li.Home().Emit(Ack{Code: EvNil, Origin: li.ID(), Params: bsid.NewPropDict()})
	return ms.output, nil
}

func (li *linkImpl) mapPullData() (*Object, error) {
	n, err := li.mapPullDataNode()
	if err != nil {
		return nil, err
	}
	return NewObjectNode(li.TypeID(), n), nil
}

// MakeOTIDFilter returns a link mapper that keeps only entries whose
// pointee object type matches typeID, shallow-cloning each kept entry
// so the output never aliases the input's link identities.
func MakeOTIDFilter(typeID string) MapLinkFunc {
	return func(src *Link, _ *Node, _ Ack, _ *Link) (*Link, MapAction) {
		if src.impl.OTID() != typeID {
			return nil, MapSkip
		}
		return src.Clone(false), MapKeep
	}
}
