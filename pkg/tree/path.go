package tree

import (
	"strings"
	"sync"

	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

var (
	rootMu   sync.RWMutex
	rootNode *nodeImpl
)

// SetRoot installs the node that absolute paths ("/a/b") resolve
// against, normally called once during kernel startup.
func SetRoot(n *Node) {
	rootMu.Lock()
	defer rootMu.Unlock()
	if n == nil {
		rootNode = nil
		return
	}
	rootNode = n.impl
}

func currentRoot() *nodeImpl {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return rootNode
}

// activeSymlinkLimit bounds how many links, of any variant, a single
// resolution may visit. A cycle routed back through a fusion link can't
// always be detected by revisiting the same link ID, so resolution
// also fails closed once it exceeds this many links.
const activeSymlinkLimit = 64

// derefPath resolves a '/'-separated path starting at root, following
// symlinks as it descends. visited tracks link IDs already followed in
// this call chain so a cycle fails with LinkBadPath instead of
// recursing forever.
func derefPath(root *nodeImpl, path string, visited map[bsid.ID]bool) (*Link, error) {
	if path == "" {
		return nil, bserr.New(bserr.CodeEmptyPath).MarkQuiet()
	}

	cur := root
	if strings.HasPrefix(path, "/") {
		if r := currentRoot(); r != nil {
			cur = r
		}
	}

	segments := strings.Split(path, "/")
	stack := []*nodeImpl{cur}
	var lastLink *Link

	for i, seg := range segments {
		if seg == "" || seg == "." {
			continue
		}
		if seg == ".." {
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		node := stack[len(stack)-1]
		link, ok := node.Find(seg)
		if !ok {
			return nil, bserr.New(bserr.CodePathNotExists).MarkQuiet()
		}
		lastLink = link

		last := i == len(segments)-1
		if last {
			break
		}

		next, err := descendThroughLinks(link, visited)
		if err != nil {
			return nil, err
		}
		stack = append(stack, next)
	}

	if lastLink == nil {
		// The path reduced to "." or "..": resolve to the link
		// containing the node we ended on, if it has one.
		node := stack[len(stack)-1]
		if h := node.handle(); h != nil {
			return wrapLink(h), nil
		}
		return nil, bserr.New(bserr.CodeEmptyPath).MarkQuiet()
	}
	return lastLink, nil
}

// descendThroughLinks resolves link to the node used for the next path
// segment, following sym/fusion/map indirection and guarding against
// cycles via visited and activeSymlinkLimit.
func descendThroughLinks(link *Link, visited map[bsid.ID]bool) (*nodeImpl, error) {
	if len(visited) > activeSymlinkLimit {
		return nil, bserr.New(bserr.CodeLinkBadPath).MarkQuiet()
	}
	if visited[link.ID()] {
		return nil, bserr.New(bserr.CodeLinkBadPath).MarkQuiet()
	}
	visited[link.ID()] = true

	n, err := link.DataNode(0)
	if err != nil {
		return nil, err
	}
	return n.impl, nil
}

// AbsPath renders a path down to leaf by walking owner nodes and their
// handle links upward until it reaches a link with no owner or a node
// with no handle link; the
// installed root is not consulted. Not guaranteed unique: a link may
// be reachable by more than one path.
func AbsPath(leaf *Link) string {
	var parts []string
	cur := leaf.impl
	for cur != nil {
		parts = append([]string{cur.Name()}, parts...)
		owner := cur.Owner()
		if owner == nil {
			break
		}
		cur = owner.handle()
	}
	return "/" + strings.Join(parts, "/")
}
