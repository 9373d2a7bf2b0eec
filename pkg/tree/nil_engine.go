package tree

import "sync"

// The nil engines are process-wide singletons representing "no link"
// and "no node": every Data/DataNode call on the nil link fails, and
// their actor never spawns a goroutine. Built on engine.go's
// inlineActor/newNilEngineBase split.
var (
	nilLinkOnce sync.Once
	nilLink     *Link

	nilNodeOnce sync.Once
	nilNode     *Node
)

// NilLink returns the singleton nil link. Its Data/DataNode always
// report EmptyData since hardObj is never set.
func NilLink() *Link {
	nilLinkOnce.Do(func() {
		li := newLinkImplBase(VariantHard, "")
		li.engineBase = newNilEngineBase("link/nil")
		li.flags = FlagNil
		nilLink = wrapLink(li)
	})
	return nilLink
}

// NilNode returns the singleton nil node: always empty, since InsertAt
// silently drops every insert and erase has nothing to remove.
func NilNode() *Node {
	nilNodeOnce.Do(func() {
		ni := newNodeImpl()
		ni.engineBase = newNilEngineBase("node/nil")
		nilNode = &Node{impl: ni}
	})
	return nilNode
}

// IsNil reports whether l is the nil-link singleton.
func (l *Link) IsNil() bool { return l == nilLink }

// IsNil reports whether n is the nil-node singleton.
func (n *Node) IsNil() bool { return n == nilNode }
