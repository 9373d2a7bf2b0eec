package archive

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
	"github.com/bluesky-tree/bskernel/pkg/tree"
)

// SaveOpts tunes one Save call.
type SaveOpts struct {
	ClearDirs   bool // wipe the target directory first
	SaveMinimal bool // skip payload bytes, metadata only
}

// archiveFormatVersion is written into the root file so a future reader
// can tell which layout revision produced an archive.
const archiveFormatVersion uint32 = 2

type rootRecord struct {
	FormatVersion uint32 `json:"format_version"`
	RootLinkID    string `json:"root_link_id"`
	LinksDir      string `json:"links_dir"`
	ObjectsDir    string `json:"objects_dir"`
}

type objectRecord struct {
	InstID string `json:"inst_id"`
	TypeID string `json:"type_id"`
	IsNode bool   `json:"is_node,omitempty"`
	// NodeID is the wrapped node's own engine ID, set only when IsNode
	// is true — distinct from InstID, which identifies this object
	// handle, not the node it wraps.
	NodeID      string `json:"node_id,omitempty"`
	Formatter   string `json:"formatter,omitempty"`
	PayloadFile string `json:"payload_file,omitempty"`
}

// linkRecord is the one-file-per-link unit of the archive. A link
// whose pointee is a node also carries Leafs, the child link IDs in
// insertion order, so the node's ordering survives a round trip
// without a separate manifest file.
type linkRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Variant string `json:"variant"`
	Flags   uint32 `json:"flags"`
	SymPath string `json:"sym_path,omitempty"`
	// Object is the pointee resolved once at save time; map and fusion
	// links persist only this snapshot, not their live mapper/bridge;
	// see DESIGN.md.
	Object *objectRecord `json:"object,omitempty"`
	Leafs  []string      `json:"leafs,omitempty"`
}

// Writer serializes a live tree to a filesystem archive.
type Writer struct {
	layout   Layout
	registry *FormatterRegistry
	opts     SaveOpts
	wg       sync.WaitGroup

	errMu    sync.Mutex
	firstErr error

	mu          sync.Mutex
	visitedLink map[string]bool
	visitedObj  map[string]*objectRecord
	emptyIDs    []byte // packed raw 16-byte object IDs with empty payloads
}

func NewWriter(dir string, registry *FormatterRegistry, opts SaveOpts) *Writer {
	return &Writer{
		layout:      NewLayout(dir),
		registry:    registry,
		opts:        opts,
		visitedLink: make(map[string]bool),
		visitedObj:  make(map[string]*objectRecord),
	}
}

// Save wraps root in a hard link and serializes the subtree under it.
// The wrapping reuses the node's existing handle object when one
// exists so the saved instance ID is stable across repeated saves.
func (w *Writer) Save(root *tree.Node) error {
	obj := root.Handle()
	if obj == nil {
		obj = tree.NewObjectNode("node", root)
	}
	return w.SaveLink(tree.NewHardLink("root", obj))
}

// SaveLink serializes the subtree rooted at root, returning the first
// error encountered by any deferred payload job alongside any
// synchronous error from walking the tree.
func (w *Writer) SaveLink(root *tree.Link) error {
	if w.opts.ClearDirs {
		if err := w.layout.ClearDirs(); err != nil {
			return err
		}
	} else if err := w.layout.ensureDirs(); err != nil {
		return err
	}

	if err := w.saveLink(root); err != nil {
		return err
	}

	w.wg.Wait()

	w.mu.Lock()
	empty := w.emptyIDs
	w.mu.Unlock()
	if err := os.WriteFile(w.layout.EmptyPayloadFile(), empty, 0o644); err != nil {
		return err
	}

	rootRec := rootRecord{
		FormatVersion: archiveFormatVersion,
		RootLinkID:    root.ID().String(),
		LinksDir:      linksDir,
		ObjectsDir:    objectsDir,
	}
	data, _ := json.MarshalIndent(rootRec, "", "  ")
	if err := os.WriteFile(w.layout.RootFile(), data, 0o644); err != nil {
		return err
	}

	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.firstErr
}

func (w *Writer) recordErr(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.firstErr == nil {
		w.firstErr = err
	}
}

// saveLink writes one link record and recurses into every child link
// reachable through a resolvable pointee node. A link reachable twice
// (shared subtree) is written once.
func (w *Writer) saveLink(l *tree.Link) error {
	id := l.ID().String()
	w.mu.Lock()
	if w.visitedLink[id] {
		w.mu.Unlock()
		return nil
	}
	w.visitedLink[id] = true
	w.mu.Unlock()

	rec := linkRecord{
		ID:      id,
		Name:    l.Name(),
		Variant: l.Variant().String(),
		Flags:   uint32(l.Flags()),
	}
	if l.Variant() == tree.VariantSym {
		rec.SymPath = l.Path()
	}

	obj, err := l.Data(tree.OptErrorIfBusy | tree.OptSilent)
	if err == nil && obj != nil {
		rec.Object = w.objectRecordFor(obj)
		if child, ok := obj.Node(); ok {
			for _, leaf := range child.Leafs() {
				rec.Leafs = append(rec.Leafs, leaf.ID().String())
				if err := w.saveLink(leaf); err != nil {
					return err
				}
			}
		}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(w.layout.LinkFile(id), data, 0o644)
}

// objectRecordFor builds (and caches) the record for obj, marshaling
// its payload synchronously but flushing the bytes to disk as a
// deferred job tracked by w.wg, so many large payloads write
// concurrently without blocking the tree walk. Empty payloads go into
// the packed empty-ID vector instead of a file of their own.
func (w *Writer) objectRecordFor(obj *tree.Object) *objectRecord {
	w.mu.Lock()
	if rec, ok := w.visitedObj[obj.ObjectID()]; ok {
		w.mu.Unlock()
		return rec
	}
	rec := &objectRecord{InstID: obj.ObjectID(), TypeID: obj.TypeID()}
	w.visitedObj[obj.ObjectID()] = rec
	w.mu.Unlock()

	if n, ok := obj.Node(); ok {
		rec.IsNode = true
		rec.NodeID = n.ID().String()
		return rec
	}
	if w.opts.SaveMinimal {
		return rec
	}

	payload := obj.Payload()
	if payload == nil {
		w.markEmpty(obj.ObjectID())
		return rec
	}
	f, name, err := w.registry.mustActive(obj.TypeID())
	if err != nil {
		w.recordErr(bserr.Newf(bserr.CodeMissingFormatter,
			"archive: object %s has no formatter for type %s", obj.ObjectID(), obj.TypeID()))
		return rec
	}
	b, err := f.Marshal(payload)
	if err != nil {
		w.recordErr(err)
		return rec
	}
	if len(b) == 0 {
		w.markEmpty(obj.ObjectID())
		return rec
	}

	rec.Formatter = name
	rec.PayloadFile = obj.ObjectID() + "." + name
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.recordErr(os.WriteFile(w.layout.ObjectPayloadFile(obj.ObjectID(), name), b, 0o644))
	}()
	return rec
}

func (w *Writer) markEmpty(instID string) {
	id, err := bsid.ParseID(instID)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.emptyIDs = append(w.emptyIDs, id.Bytes()...)
	w.mu.Unlock()
}
