// Package httpfs exposes a saved filesystem archive as a read-only
// HTTP browser built on chi. GET / lists the root node's entries and
// GET /path/* lists the entries of the node a path resolves to, or
// reports the name and variant of an entry that is not a node. Object
// payloads are not served.
package httpfs

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bluesky-tree/bskernel/pkg/archive"
	"github.com/bluesky-tree/bskernel/pkg/tree"
)

// NewServer builds a chi router over the archive at dir, loading it
// once at startup (the archive is immutable while served).
func NewServer(dir string, registry *archive.FormatterRegistry) (http.Handler, error) {
	reader := archive.NewReader(dir, registry, archive.LoadOpts{Lazy: true})
	root, err := reader.Load()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, listNode(root))
	})
	r.Get("/path/*", func(w http.ResponseWriter, req *http.Request) {
		path := chi.URLParam(req, "*")
		link, err := root.DeepSearch(path)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errView{Error: err.Error()})
			return
		}
		n, err := link.DataNode(tree.OptErrorIfBusy)
		if err != nil {
			writeJSON(w, http.StatusOK, leafView{Name: link.Name(), Variant: link.Variant().String()})
			return
		}
		writeJSON(w, http.StatusOK, listNode(n))
	})
	return r, nil
}

type entryView struct {
	Name    string `json:"name"`
	Variant string `json:"variant"`
}

type nodeView struct {
	Size    int         `json:"size"`
	Entries []entryView `json:"entries"`
}

type leafView struct {
	Name    string `json:"name"`
	Variant string `json:"variant"`
}

type errView struct {
	Error string `json:"error"`
}

func listNode(n *tree.Node) nodeView {
	nv := nodeView{Size: n.Size()}
	for i := 0; i < n.Size(); i++ {
		link, ok := n.Index(i)
		if !ok {
			continue
		}
		nv.Entries = append(nv.Entries, entryView{Name: link.Name(), Variant: link.Variant().String()})
	}
	return nv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
