package tree

import "github.com/bluesky-tree/bskernel/pkg/bsid"

// Node is the public handle for a node engine. It forwards to the
// shared nodeImpl multi-index container.
type Node struct {
	impl *nodeImpl
}

// NewNode creates an empty node, not yet wrapped in an object-node nor
// inserted anywhere.
func NewNode() *Node { return &Node{impl: newNodeImpl()} }

// NewNodeWithID creates an empty node like NewNode but reuses id
// instead of minting a fresh one, used when reconstructing a node from
// a saved archive.
func NewNodeWithID(id bsid.ID) *Node {
	n := NewNode()
	n.impl.restoreID(id)
	return n
}

func (n *Node) ID() bsid.ID       { return n.impl.ID() }
func (n *Node) HomeID() string    { return n.impl.HomeID() }
func (n *Node) Home() *EventGroup { return n.impl.Home() }

func (n *Node) Size() int   { return n.impl.Size() }
func (n *Node) Empty() bool { return n.impl.Empty() }
func (n *Node) Clear()      { n.impl.Clear() }

func (n *Node) Leafs() []*Link { return n.impl.Leafs() }
func (n *Node) Keys() []string { return n.impl.Keys() }
func (n *Node) IDs() []bsid.ID { return n.impl.IDs() }

// SKeys returns the distinct keys under meaning, sorted.
func (n *Node) SKeys(meaning KeyMeaning) []string { return n.impl.SKeys(meaning) }

func (n *Node) Find(name string) (*Link, bool)  { return n.impl.Find(name) }
func (n *Node) FindID(id bsid.ID) (*Link, bool) { return n.impl.FindID(id) }

// FindKey resolves key under meaning, returning the first match.
func (n *Node) FindKey(key string, meaning KeyMeaning) (*Link, bool) {
	return n.impl.FindKey(key, meaning)
}

// EqualRange returns every entry matching key under meaning.
func (n *Node) EqualRange(key string, meaning KeyMeaning) []*Link {
	return n.impl.EqualRange(key, meaning)
}

func (n *Node) Index(i int) (*Link, bool)      { return n.impl.Index(i) }
func (n *Node) IndexOf(id bsid.ID) (int, bool) { return n.impl.IndexOf(id) }

// IndexOfKey returns the AnyOrder position of the first entry matching
// key under meaning.
func (n *Node) IndexOfKey(key string, meaning KeyMeaning) (int, bool) {
	return n.impl.IndexOfKey(key, meaning)
}

// Insert adds l at the end of AnyOrder under the given collision
// policy, reporting the index it collided with or landed at and
// whether a new entry was actually added.
func (n *Node) Insert(l *Link, policy InsPolicy) (InsertResult, error) {
	return n.impl.Insert(l, policy)
}

// InsertAt adds l at AnyOrder position at.
func (n *Node) InsertAt(l *Link, at int, policy InsPolicy) (InsertResult, error) {
	return n.impl.InsertAt(l, at, policy)
}

// InsertMany adds each link in ls under policy, returning how many new
// entries were actually added.
func (n *Node) InsertMany(ls []*Link, policy InsPolicy) int {
	return n.impl.InsertMany(ls, policy)
}

// Erase removes every entry matching key under meaning, returning the
// number removed.
func (n *Node) Erase(key string, meaning KeyMeaning) int { return n.impl.Erase(key, meaning) }

// EraseByID removes the entry whose link ID matches id.
func (n *Node) EraseByID(id bsid.ID) int { return n.impl.EraseByID(id) }

// EraseByIDs removes every entry whose ID appears in ids.
func (n *Node) EraseByIDs(ids []bsid.ID) int { return n.impl.EraseByIDs(ids) }

// EraseAt removes the entry at AnyOrder position i.
func (n *Node) EraseAt(i int) int { return n.impl.EraseAt(i) }

// Rename renames every entry named oldName, returning how many
// actually changed.
func (n *Node) Rename(oldName, newName string) int { return n.impl.Rename(oldName, newName) }

// RenameAt renames the entry at AnyOrder position i.
func (n *Node) RenameAt(i int, newName string) int { return n.impl.RenameAt(i, newName) }

// RenameByID renames the entry whose link ID matches id.
func (n *Node) RenameByID(id bsid.ID, newName string) int { return n.impl.RenameByID(id, newName) }

// Rearrange reorders AnyOrder to match newOrder, a permutation of
// [0, Size()).
func (n *Node) Rearrange(newOrder []int) error { return n.impl.Rearrange(newOrder) }

// RearrangeIDs reorders AnyOrder so entries appear in the order their
// IDs appear in ids.
func (n *Node) RearrangeIDs(ids []bsid.ID) error { return n.impl.RearrangeIDs(ids) }

// DeepSearch resolves a '/'-separated path rooted at n, following
// symlinks and handle links as it descends.
func (n *Node) DeepSearch(path string) (*Link, error) {
	return derefPath(n.impl, path, make(map[bsid.ID]bool))
}

// DeepFindID walks the subtree depth-first for the link with ID id.
func (n *Node) DeepFindID(id bsid.ID) (*Link, bool) { return n.impl.DeepSearchID(id) }

// DeepFindKey walks the subtree depth-first for the first link
// matching key under meaning.
func (n *Node) DeepFindKey(key string, meaning KeyMeaning) (*Link, bool) {
	return n.impl.DeepSearch(key, meaning)
}

// DeepEqualRange collects every link in the subtree matching key under
// meaning, depth-first.
func (n *Node) DeepEqualRange(key string, meaning KeyMeaning) []*Link {
	return n.impl.DeepEqualRange(key, meaning)
}

// Subscribe registers handler against this node's home event group.
func (n *Node) Subscribe(mask EventMask, handler Handler) SubscriptionID {
	return n.impl.Home().Subscribe(mask, handler)
}

// Unsubscribe removes a handler previously registered with Subscribe.
func (n *Node) Unsubscribe(id SubscriptionID) { n.impl.Home().Unsubscribe(id) }

// UnsubscribeDeep removes subscription id from this node, every entry
// link and every child node across the whole subtree, depth-first.
func (n *Node) UnsubscribeDeep(id SubscriptionID) {
	n.impl.Home().Unsubscribe(id)
	for _, l := range n.impl.snapshotLinks() {
		l.Home().Unsubscribe(id)
		if child := childNodeOf(l); child != nil {
			(&Node{impl: child}).UnsubscribeDeep(id)
		}
	}
}

// Handle returns the ObjectNode wrapping this node, if one was ever
// created via NewObjectNode.
func (n *Node) Handle() *Object {
	n.impl.mu.RLock()
	defer n.impl.mu.RUnlock()
	return n.impl.handleObj
}
