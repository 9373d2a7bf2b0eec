package archive

import (
	"encoding/json"
	"os"

	"github.com/bluesky-tree/bskernel/internal/logger"
	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
	"github.com/bluesky-tree/bskernel/pkg/tree"
)

// LoadOpts tunes one Load call.
type LoadOpts struct {
	// Lazy defers reading payload bytes until Object.Payload is first
	// asked for, instead of reading every payload up front.
	Lazy bool
}

// Reader reconstructs a tree from a filesystem archive written by
// Writer.
type Reader struct {
	layout   Layout
	registry *FormatterRegistry
	opts     LoadOpts
	links    map[string]*tree.Link
	loading  map[string]bool
	objects  map[string]*tree.Object
	nodes    map[string]*tree.Node
	empty    map[string]bool
}

func NewReader(dir string, registry *FormatterRegistry, opts LoadOpts) *Reader {
	return &Reader{
		layout:   NewLayout(dir),
		registry: registry,
		opts:     opts,
		links:    make(map[string]*tree.Link),
		loading:  make(map[string]bool),
		objects:  make(map[string]*tree.Object),
		nodes:    make(map[string]*tree.Node),
	}
}

// Load reconstructs the subtree under the archive's root link and
// returns its node.
func (r *Reader) Load() (*tree.Node, error) {
	root, err := r.LoadRootLink()
	if err != nil {
		return nil, err
	}
	return root.DataNode(0)
}

// LoadRootLink reads the archive's root pointer and reconstructs the
// root link itself.
func (r *Reader) LoadRootLink() (*tree.Link, error) {
	var rootRec rootRecord
	data, err := os.ReadFile(r.layout.RootFile())
	if err != nil {
		return nil, bserr.Wrap(bserr.CodeCantReadFile, err)
	}
	if err := json.Unmarshal(data, &rootRec); err != nil {
		return nil, bserr.Wrap(bserr.CodeBadObject, err)
	}
	if err := r.loadEmptySet(); err != nil {
		return nil, err
	}
	return r.loadLink(rootRec.RootLinkID)
}

// loadEmptySet reads the packed empty-payload ID vector. A missing
// file just means no object saved empty.
func (r *Reader) loadEmptySet() error {
	r.empty = make(map[string]bool)
	data, err := os.ReadFile(r.layout.EmptyPayloadFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return bserr.Wrap(bserr.CodeCantReadFile, err)
	}
	if len(data)%16 != 0 {
		return bserr.Newf(bserr.CodeBadObject, "archive: empty-payload vector has odd length %d", len(data))
	}
	for off := 0; off < len(data); off += 16 {
		id, err := bsid.IDFromBytes(data[off : off+16])
		if err != nil {
			return bserr.Wrap(bserr.CodeBadObject, err)
		}
		r.empty[id.String()] = true
	}
	return nil
}

// loadLink reconstructs one persisted link, reusing the cached one on
// a repeat reference (a link reachable from more than one node is
// saved once and legitimately loaded more than once) but rejecting a
// record whose declared id disagrees with the filename it was
// addressed by, the one way this one-file-per-ID layout can actually
// detect a corrupted archive claiming a home-ID that isn't its own.
func (r *Reader) loadLink(linkID string) (*tree.Link, error) {
	if l, ok := r.links[linkID]; ok {
		return l, nil
	}
	if r.loading[linkID] {
		return nil, bserr.Newf(bserr.CodeLinkBadPath, "archive: link %s references itself through its own subtree", linkID).MarkQuiet()
	}
	r.loading[linkID] = true
	defer delete(r.loading, linkID)

	data, err := os.ReadFile(r.layout.LinkFile(linkID))
	if err != nil {
		return nil, bserr.Wrap(bserr.CodeCantReadFile, err)
	}
	var rec linkRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, bserr.Wrap(bserr.CodeBadObject, err)
	}
	if rec.ID != "" && rec.ID != linkID {
		return nil, bserr.Newf(bserr.CodeKeyMismatch,
			"archive: link record %s declares conflicting id %s", linkID, rec.ID).MarkQuiet()
	}

	id, err := bsid.ParseID(linkID)
	if err != nil {
		return nil, bserr.Wrap(bserr.CodeBadObject, err)
	}

	var link *tree.Link
	switch rec.Variant {
	case "sym":
		link = tree.NewSymLinkWithID(id, rec.Name, rec.SymPath)
	case "hard", "weak", "fusion", "map":
		// Map and fusion links were saved only as a resolved-object
		// snapshot; they come back as hard links over that snapshot.
		// Restoring a live mapper or bridge is the caller's job after
		// Load.
		if rec.Object == nil {
			return nil, bserr.New(bserr.CodeEmptyData).MarkQuiet()
		}
		obj, err := r.restoreObject(rec)
		if err != nil {
			return nil, err
		}
		if rec.Variant == "weak" {
			link = tree.NewWeakLinkWithID(id, rec.Name, obj)
		} else {
			link = tree.NewHardLinkWithID(id, rec.Name, obj)
		}
	default:
		return nil, bserr.Newf(bserr.CodeBadObject, "archive: unknown link variant %q", rec.Variant)
	}
	link.SetFlags(tree.LinkFlags(rec.Flags))
	r.links[linkID] = link
	return link, nil
}

// restoreObject rebuilds rec's pointee, reconstructing the wrapped
// node (and, through it, every leaf link) for object-nodes and wiring
// payload bytes — eagerly or through a lazy loader — for the rest.
func (r *Reader) restoreObject(rec linkRecord) (*tree.Object, error) {
	o := rec.Object
	if cached, ok := r.objects[o.InstID]; ok {
		return cached, nil
	}

	if o.IsNode {
		nid, err := bsid.ParseID(o.NodeID)
		if err != nil {
			return nil, bserr.Wrap(bserr.CodeBadObject, err)
		}
		n, ok := r.nodes[o.NodeID]
		if !ok {
			n = tree.NewNodeWithID(nid)
			r.nodes[o.NodeID] = n
			for _, leafID := range rec.Leafs {
				leaf, err := r.loadLink(leafID)
				if err != nil {
					logger.Log("archive: skipping link %s: %v", leafID, err)
					continue
				}
				if _, err := n.Insert(leaf, tree.AllowDupNames); err != nil {
					return nil, err
				}
			}
		}
		obj := tree.NewObjectNodeWithID(o.TypeID, o.InstID, n)
		r.objects[o.InstID] = obj
		return obj, nil
	}

	obj := tree.NewObjectWithID(o.TypeID, o.InstID, nil)
	if o.PayloadFile != "" && !r.empty[o.InstID] {
		if r.opts.Lazy {
			meta := *o
			obj.SetLoader(func() (any, error) { return r.readPayload(&meta) })
		} else {
			payload, err := r.readPayload(o)
			if err != nil {
				return nil, err
			}
			obj.SetPayload(payload)
		}
	}
	r.objects[o.InstID] = obj
	return obj, nil
}

func (r *Reader) readPayload(o *objectRecord) (any, error) {
	b, err := os.ReadFile(r.layout.ObjectPayloadFile(o.InstID, o.Formatter))
	if err != nil {
		return nil, bserr.Wrap(bserr.CodeCantReadFile, err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	f, err := r.registry.decoderFor(o.TypeID, o.Formatter)
	if err != nil {
		return nil, err
	}
	return f.Unmarshal(b)
}
