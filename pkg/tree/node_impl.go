package tree

import (
	"sort"
	"strconv"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

// InsPolicy controls what Insert does when name collides with an
// existing entry.
type InsPolicy int

const (
	AllowDupNames InsPolicy = iota
	DenyDupNames
	RenameDup
	Merge
)

// KeyMeaning selects which index a string key addresses.
type KeyMeaning int

const (
	KeyID KeyMeaning = iota
	KeyName
	KeyOID
	KeyOType
)

// nodeItem is one entry in a node's multi-index container: a link plus
// the bookkeeping needed to keep the indices in sync.
type nodeItem struct {
	link *Link
}

// nodeImpl is the node engine: an ordered, multiply-indexed collection
// of links. The builtin indices — AnyOrder (insertion order), ID and
// Name — are kept live as a slice plus two maps; the extra indices (OID
// and OType) are computed on demand by a stateless search actor that
// scans AnyOrder. Go has no multi-index container library, so the
// indices are maintained by hand. Mutations run synchronously under
// mu on the caller's goroutine; the embedded engine contributes the
// node's identity and home group, and its lazily-spawned actor stays
// unspawned for the node's own lifetime.
type nodeImpl struct {
	*engineBase

	mu         sync.RWMutex
	order      []*nodeItem            // AnyOrder
	byID       map[bsid.ID]*nodeItem  // ID index, unique
	byName     map[string][]*nodeItem // Name index, not necessarily unique
	handleObj  *Object
	handleLink *linkImpl // the single link containing this node, if any
}

func newNodeImpl() *nodeImpl {
	return &nodeImpl{
		engineBase: newEngineBase("node", mailboxCapacity()),
		byID:       make(map[bsid.ID]*nodeItem),
		byName:     make(map[string][]*nodeItem),
	}
}

// setHandleObject records the ObjectNode wrapping this node, called
// once from NewObjectNode.
func (ni *nodeImpl) setHandleObject(o *Object) {
	ni.mu.Lock()
	ni.handleObj = o
	ni.mu.Unlock()
}

// claimHandle records li as the single link containing this node and
// wires the node's acks to also surface on the link's home group. A
// node already claimed keeps its first handle.
func (ni *nodeImpl) claimHandle(li *linkImpl) {
	ni.mu.Lock()
	if ni.handleLink != nil {
		ni.mu.Unlock()
		return
	}
	ni.handleLink = li
	ni.mu.Unlock()
	ni.Home().AddForward(li.Home())
}

func (ni *nodeImpl) handle() *linkImpl {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	return ni.handleLink
}

// HandleLink returns the link containing this node, or nil.
func (n *Node) HandleLink() *Link {
	h := n.impl.handle()
	if h == nil {
		return nil
	}
	return wrapLink(h)
}

func (ni *nodeImpl) Size() int {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	return len(ni.order)
}

func (ni *nodeImpl) Empty() bool { return ni.Size() == 0 }

// Clear removes every entry, emitting LinkErased for each.
func (ni *nodeImpl) Clear() {
	ni.mu.Lock()
	removed := ni.order
	ni.order = nil
	ni.byID = make(map[bsid.ID]*nodeItem)
	ni.byName = make(map[string][]*nodeItem)
	ni.mu.Unlock()

	for _, it := range removed {
		ni.dropEntry(it.link)
	}
}

// dropEntry severs an erased link from the node: ownership, the
// handle-chain forward, and the erase ack.
func (ni *nodeImpl) dropEntry(l *Link) {
	l.impl.setOwner(nil)
	l.impl.Home().RemoveForward(ni.Home())
	ni.emitErased(l)
}

// snapshotLinks returns a stable copy of the node's entries in
// AnyOrder, so callers can iterate (or hand entries to user callbacks)
// without holding ni.mu.
func (ni *nodeImpl) snapshotLinks() []*Link {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	out := make([]*Link, len(ni.order))
	for i, it := range ni.order {
		out[i] = it.link
	}
	return out
}

// Leafs returns every entry in AnyOrder.
func (ni *nodeImpl) Leafs() []*Link { return ni.snapshotLinks() }

// Keys returns every entry's name in AnyOrder.
func (ni *nodeImpl) Keys() []string {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	out := make([]string, len(ni.order))
	for i, it := range ni.order {
		out[i] = it.link.Name()
	}
	return out
}

// IDs returns every entry's link ID in AnyOrder (ikeys).
func (ni *nodeImpl) IDs() []bsid.ID {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	out := make([]bsid.ID, len(ni.order))
	for i, it := range ni.order {
		out[i] = it.link.ID()
	}
	return out
}

// SKeys returns every distinct key under meaning, sorted — the
// index-traversal order for that key family.
func (ni *nodeImpl) SKeys(meaning KeyMeaning) []string {
	seen := make(map[string]bool)
	for _, l := range ni.snapshotLinks() {
		seen[keyOf(l, meaning)] = true
	}
	delete(seen, "")
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func keyOf(l *Link, meaning KeyMeaning) string {
	switch meaning {
	case KeyID:
		return l.ID().String()
	case KeyOID:
		return l.impl.OID()
	case KeyOType:
		return l.impl.OTID()
	default:
		return l.Name()
	}
}

// Find returns the first entry named name, if any.
func (ni *nodeImpl) Find(name string) (*Link, bool) {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	items := ni.byName[name]
	if len(items) == 0 {
		return nil, false
	}
	return items[0].link, true
}

// FindID returns the entry whose link ID is id.
func (ni *nodeImpl) FindID(id bsid.ID) (*Link, bool) {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	it, ok := ni.byID[id]
	if !ok {
		return nil, false
	}
	return it.link, true
}

// FindKey resolves key under meaning, returning the first match.
func (ni *nodeImpl) FindKey(key string, meaning KeyMeaning) (*Link, bool) {
	switch meaning {
	case KeyID:
		id, err := bsid.ParseID(key)
		if err != nil {
			return nil, false
		}
		return ni.FindID(id)
	case KeyName:
		return ni.Find(key)
	default:
		matches := ni.searchExtra(key, meaning)
		if len(matches) == 0 {
			return nil, false
		}
		return matches[0], true
	}
}

// EqualRange returns every entry matching key under meaning.
func (ni *nodeImpl) EqualRange(key string, meaning KeyMeaning) []*Link {
	switch meaning {
	case KeyName:
		ni.mu.RLock()
		defer ni.mu.RUnlock()
		items := ni.byName[key]
		out := make([]*Link, len(items))
		for i, it := range items {
			out[i] = it.link
		}
		return out
	case KeyID:
		if l, ok := ni.FindKey(key, KeyID); ok {
			return []*Link{l}
		}
		return nil
	default:
		return ni.searchExtra(key, meaning)
	}
}

// searchExtra delegates an OID/OType lookup to a freshly spawned
// stateless search actor scanning an AnyOrder snapshot, keeping the
// O(n) pass (which may itself resolve pointee data) off the node's own
// lock and actor.
func (ni *nodeImpl) searchExtra(key string, meaning KeyMeaning) []*Link {
	snapshot := ni.snapshotLinks()
	resCh := make(chan []*Link, 1)
	go func() {
		var out []*Link
		for _, l := range snapshot {
			if keyOf(l, meaning) == key {
				out = append(out, l)
			}
		}
		resCh <- out
	}()
	return <-resCh
}

// Index returns the i'th entry in AnyOrder.
func (ni *nodeImpl) Index(i int) (*Link, bool) {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	if i < 0 || i >= len(ni.order) {
		return nil, false
	}
	return ni.order[i].link, true
}

// IndexOf returns the AnyOrder position of the entry with link ID id.
func (ni *nodeImpl) IndexOf(id bsid.ID) (int, bool) {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	it, ok := ni.byID[id]
	if !ok {
		return 0, false
	}
	i := slices.Index(ni.order, it)
	return i, i >= 0
}

// IndexOfKey returns the AnyOrder position of the first entry matching
// key under meaning.
func (ni *nodeImpl) IndexOfKey(key string, meaning KeyMeaning) (int, bool) {
	l, ok := ni.FindKey(key, meaning)
	if !ok {
		return 0, false
	}
	return ni.IndexOf(l.ID())
}

// InsertResult reports what Insert actually did: Index is the AnyOrder
// position of the entry Insert collided with (DenyDupNames, Merge) or
// the position the new entry landed at (RenameDup, AllowDupNames).
// Inserted is true only when a new top-level entry was added.
type InsertResult struct {
	Index    int
	Inserted bool
}

// Insert adds l at the end of AnyOrder under policy.
func (ni *nodeImpl) Insert(l *Link, policy InsPolicy) (InsertResult, error) {
	return ni.InsertAt(l, -1, policy)
}

// InsertAt adds l at AnyOrder position at (or at the end when at is
// out of range), honoring the collision policy. ID collisions are
// rejected regardless of policy: within a node, link ID is unique.
func (ni *nodeImpl) InsertAt(l *Link, at int, policy InsPolicy) (InsertResult, error) {
	if ni.inline {
		// The nil-node singleton stays empty: inserts are dropped.
		return InsertResult{Index: -1}, nil
	}
	name := l.Name()

	ni.mu.Lock()
	if existing, dup := ni.byID[l.ID()]; dup {
		idx := slices.Index(ni.order, existing)
		ni.mu.Unlock()
		return InsertResult{Index: idx}, bserr.New(bserr.CodeKeyMismatch).MarkQuiet()
	}
	existing := ni.byName[name]
	switch {
	case len(existing) > 0 && policy == DenyDupNames:
		idx := slices.Index(ni.order, existing[0])
		ni.mu.Unlock()
		return InsertResult{Index: idx}, bserr.New(bserr.CodeKeyMismatch).MarkQuiet()
	case len(existing) > 0 && policy == RenameDup:
		ni.mu.Unlock()
		name = ni.uniqueName(name)
		l.Rename(name)
		ni.mu.Lock()
	case len(existing) > 0 && policy == Merge:
		dst := existing[0].link
		idx := slices.Index(ni.order, existing[0])
		ni.mu.Unlock()
		if err := mergeInto(dst, l); err != nil {
			return InsertResult{Index: idx}, err
		}
		return InsertResult{Index: idx}, nil
	}

	it := &nodeItem{link: l}
	idx := at
	if idx < 0 || idx > len(ni.order) {
		idx = len(ni.order)
	}
	ni.order = slices.Insert(ni.order, idx, it)
	ni.byID[l.ID()] = it
	ni.byName[name] = append(ni.byName[name], it)
	ni.mu.Unlock()

	l.impl.setOwner(ni)
	l.impl.Home().AddForwardDeep(ni.Home())
	if obj, err := l.Data(OptErrorIfBusy | OptSilent); err == nil && obj != nil {
		if child, ok := obj.Node(); ok {
			child.impl.claimHandle(l.impl)
		}
	}
	// Runs after mu is released: concurrent inserts on the same node
	// may see insert acks arrive in a different order than the entries
	// landed in AnyOrder.
	ni.emitInserted(l)
	return InsertResult{Index: idx, Inserted: true}, nil
}

// InsertMany adds each link in ls under policy, returning how many new
// entries were actually added.
func (ni *nodeImpl) InsertMany(ls []*Link, policy InsPolicy) int {
	count := 0
	for _, l := range ls {
		if res, err := ni.Insert(l, policy); err == nil && res.Inserted {
			count++
		}
	}
	return count
}

// mergeInto implements the Merge insertion policy: when dst and src
// both point to nodes, every entry of src's node is inserted into
// dst's node under Merge, recursing depth-first wherever a nested name
// collides and both sides are nodes again. When either side isn't a
// node, dst is left untouched and src is dropped, same as a collision
// under the other policies that don't special-case it.
func mergeInto(dst, src *Link) error {
	dstObj, err := dst.Data(OptErrorIfBusy)
	if err != nil || dstObj == nil || !dstObj.IsNode() {
		return nil
	}
	srcObj, err := src.Data(OptErrorIfBusy)
	if err != nil || srcObj == nil || !srcObj.IsNode() {
		return nil
	}
	dstNode, _ := dstObj.Node()
	srcNode, _ := srcObj.Node()
	for _, entry := range srcNode.impl.snapshotLinks() {
		if _, err := dstNode.impl.Insert(entry, Merge); err != nil {
			return err
		}
	}
	return nil
}

// uniqueName appends _N until the result collides with nothing in
// ni.byName. Caller must not hold ni.mu.
func (ni *nodeImpl) uniqueName(base string) string {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	if _, exists := ni.byName[base]; !exists {
		return base
	}
	for n := 1; ; n++ {
		name := base + "_" + strconv.Itoa(n)
		if _, exists := ni.byName[name]; !exists {
			return name
		}
	}
}

// Erase removes every entry matching key under meaning (erasing by a
// non-unique key erases all matches), returning how many were removed.
func (ni *nodeImpl) Erase(key string, meaning KeyMeaning) int {
	var victims []*nodeItem
	switch meaning {
	case KeyName:
		ni.mu.Lock()
		victims = append(victims, ni.byName[key]...)
		for _, v := range victims {
			ni.removeLocked(v)
		}
		ni.mu.Unlock()
	case KeyID:
		id, err := bsid.ParseID(key)
		if err != nil {
			return 0
		}
		return ni.EraseByID(id)
	default:
		for _, l := range ni.searchExtra(key, meaning) {
			ni.mu.Lock()
			if it, ok := ni.byID[l.ID()]; ok {
				ni.removeLocked(it)
				victims = append(victims, it)
			}
			ni.mu.Unlock()
		}
	}
	for _, v := range victims {
		ni.dropEntry(v.link)
	}
	return len(victims)
}

// EraseByID removes the entry whose link ID matches id, returning 1 or 0.
func (ni *nodeImpl) EraseByID(id bsid.ID) int {
	ni.mu.Lock()
	victim, ok := ni.byID[id]
	if !ok {
		ni.mu.Unlock()
		return 0
	}
	ni.removeLocked(victim)
	ni.mu.Unlock()

	ni.dropEntry(victim.link)
	return 1
}

// EraseByIDs removes every entry whose ID appears in ids, returning
// the number removed.
func (ni *nodeImpl) EraseByIDs(ids []bsid.ID) int {
	count := 0
	for _, id := range ids {
		count += ni.EraseByID(id)
	}
	return count
}

// EraseAt removes the entry at AnyOrder position i.
func (ni *nodeImpl) EraseAt(i int) int {
	ni.mu.Lock()
	if i < 0 || i >= len(ni.order) {
		ni.mu.Unlock()
		return 0
	}
	victim := ni.order[i]
	ni.removeLocked(victim)
	ni.mu.Unlock()

	ni.dropEntry(victim.link)
	return 1
}

// removeLocked unlinks it from every index. Caller holds ni.mu.
func (ni *nodeImpl) removeLocked(it *nodeItem) {
	if i := slices.Index(ni.order, it); i >= 0 {
		ni.order = slices.Delete(ni.order, i, i+1)
	}
	delete(ni.byID, it.link.ID())
	ni.byName[it.link.Name()] = removeItem(ni.byName[it.link.Name()], it)
}

func removeItem(s []*nodeItem, victim *nodeItem) []*nodeItem {
	if i := slices.Index(s, victim); i >= 0 {
		return slices.Delete(s, i, i+1)
	}
	return s
}

// Rename renames every entry named oldName to newName, returning the
// number of entries whose name actually changed.
func (ni *nodeImpl) Rename(oldName, newName string) int {
	if oldName == newName {
		return 0
	}
	ni.mu.Lock()
	items := append([]*nodeItem(nil), ni.byName[oldName]...)
	for _, it := range items {
		ni.byName[oldName] = removeItem(ni.byName[oldName], it)
		ni.byName[newName] = append(ni.byName[newName], it)
	}
	ni.mu.Unlock()

	count := 0
	for _, it := range items {
		count += it.link.impl.rename(newName)
	}
	return count
}

// RenameAt renames the entry at AnyOrder position i.
func (ni *nodeImpl) RenameAt(i int, newName string) int {
	l, ok := ni.Index(i)
	if !ok {
		return 0
	}
	return ni.renameOne(l, newName)
}

// RenameByID renames the entry whose link ID matches id.
func (ni *nodeImpl) RenameByID(id bsid.ID, newName string) int {
	l, ok := ni.FindID(id)
	if !ok {
		return 0
	}
	return ni.renameOne(l, newName)
}

func (ni *nodeImpl) renameOne(l *Link, newName string) int {
	oldName := l.Name()
	if oldName == newName {
		return 0
	}
	ni.mu.Lock()
	if it, ok := ni.byID[l.ID()]; ok {
		ni.byName[oldName] = removeItem(ni.byName[oldName], it)
		ni.byName[newName] = append(ni.byName[newName], it)
	}
	ni.mu.Unlock()
	return l.impl.rename(newName)
}

// Rearrange reorders AnyOrder to match newOrder, a permutation of
// [0, Size()). On failure the container is unchanged.
func (ni *nodeImpl) Rearrange(newOrder []int) error {
	ni.mu.Lock()
	defer ni.mu.Unlock()
	if len(newOrder) != len(ni.order) {
		return bserr.New(bserr.CodeWrongOrderSize).MarkQuiet()
	}
	seen := make([]bool, len(ni.order))
	next := make([]*nodeItem, len(ni.order))
	for i, idx := range newOrder {
		if idx < 0 || idx >= len(ni.order) || seen[idx] {
			return bserr.New(bserr.CodeKeyMismatch).MarkQuiet()
		}
		seen[idx] = true
		next[i] = ni.order[idx]
	}
	ni.order = next
	return nil
}

// RearrangeIDs reorders AnyOrder so entries appear in the order their
// IDs appear in ids, which must be a permutation of the current ID set.
func (ni *nodeImpl) RearrangeIDs(ids []bsid.ID) error {
	ni.mu.Lock()
	defer ni.mu.Unlock()
	if len(ids) != len(ni.order) {
		return bserr.New(bserr.CodeWrongOrderSize).MarkQuiet()
	}
	next := make([]*nodeItem, 0, len(ids))
	seen := make(map[bsid.ID]bool, len(ids))
	for _, id := range ids {
		it, ok := ni.byID[id]
		if !ok || seen[id] {
			return bserr.New(bserr.CodeKeyMismatch).MarkQuiet()
		}
		seen[id] = true
		next = append(next, it)
	}
	ni.order = next
	return nil
}

// DeepSearchID walks the subtree depth-first for the link with ID id.
func (ni *nodeImpl) DeepSearchID(id bsid.ID) (*Link, bool) {
	if l, ok := ni.FindID(id); ok {
		return l, true
	}
	for _, l := range ni.snapshotLinks() {
		child := childNodeOf(l)
		if child == nil {
			continue
		}
		if found, ok := child.DeepSearchID(id); ok {
			return found, true
		}
	}
	return nil, false
}

// DeepSearch walks the subtree depth-first for the first link matching
// key under meaning.
func (ni *nodeImpl) DeepSearch(key string, meaning KeyMeaning) (*Link, bool) {
	if l, ok := ni.FindKey(key, meaning); ok {
		return l, true
	}
	for _, l := range ni.snapshotLinks() {
		child := childNodeOf(l)
		if child == nil {
			continue
		}
		if found, ok := child.DeepSearch(key, meaning); ok {
			return found, true
		}
	}
	return nil, false
}

// DeepEqualRange collects every link in the subtree matching key under
// meaning, depth-first.
func (ni *nodeImpl) DeepEqualRange(key string, meaning KeyMeaning) []*Link {
	out := ni.EqualRange(key, meaning)
	for _, l := range ni.snapshotLinks() {
		if child := childNodeOf(l); child != nil {
			out = append(out, child.DeepEqualRange(key, meaning)...)
		}
	}
	return out
}

// childNodeOf resolves l's pointee node without blocking, or nil.
func childNodeOf(l *Link) *nodeImpl {
	obj, err := l.Data(OptErrorIfBusy | OptSilent)
	if err != nil || obj == nil {
		return nil
	}
	child, ok := obj.Node()
	if !ok {
		return nil
	}
	return child.impl
}

func (ni *nodeImpl) emitInserted(l *Link) {
	params := bsid.NewPropDict().
		Set("name", bsid.Str(l.Name())).
		Set("link_id", bsid.FromID(l.ID()))
	ni.Home().Emit(Ack{Code: EvLinkInserted, Origin: ni.ID(), Params: params})
}

// emitErased announces l's removal: "link_id" carries l's own ID and
// "lids" every descendant link ID (depth-first), so subscribers caching
// paths through an erased subtree know exactly what to purge.
func (ni *nodeImpl) emitErased(l *Link) {
	lids := collectDescendantLinkIDs(l)
	params := bsid.NewPropDict().
		Set("name", bsid.Str(l.Name())).
		Set("link_id", bsid.FromID(l.ID())).
		Set("lids", bsid.IDList(lids))
	ni.Home().Emit(Ack{Code: EvLinkErased, Origin: ni.ID(), Params: params})
}

// collectDescendantLinkIDs walks l's pointee node, if it has one,
// depth-first, returning every descendant link's ID in traversal
// order.
func collectDescendantLinkIDs(l *Link) []bsid.ID {
	child := childNodeOf(l)
	if child == nil {
		return nil
	}
	var ids []bsid.ID
	for _, entry := range child.snapshotLinks() {
		ids = append(ids, entry.ID())
		ids = append(ids, collectDescendantLinkIDs(entry)...)
	}
	return ids
}
