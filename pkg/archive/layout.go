// Package archive implements a filesystem serialization layer for a
// tree: a directory-per-concern layout for persisting links and object
// payloads, in the spirit of a DAGStore's directory scheme (nodes/,
// chunks/, root/) adapted to a link/payload split instead of a
// content-chunk split, since tree objects are whole in-memory payloads
// rather than chunked byte streams.
package archive

import (
	"os"
	"path/filepath"
)

const (
	objectsDir = ".objects"
	linksDir   = ".links"
	rootFile   = "root.json"

	// linkFileExt is the extension of the one-file-per-link records
	// under linksDir.
	linkFileExt = ".bsl"

	// emptyPayloadFile is a packed vector of raw 16-byte object IDs
	// whose payload serialized to zero bytes, so those objects need no
	// payload file of their own and the reader never opens one.
	emptyPayloadFile = "empty_payload.bin"
)

// Layout resolves the on-disk paths for one archive rooted at dir.
type Layout struct {
	Root string
}

func NewLayout(dir string) Layout { return Layout{Root: dir} }

func (l Layout) ObjectsDir() string { return filepath.Join(l.Root, objectsDir) }
func (l Layout) LinksDir() string   { return filepath.Join(l.Root, linksDir) }
func (l Layout) RootFile() string   { return filepath.Join(l.Root, rootFile) }
func (l Layout) EmptyPayloadFile() string {
	return filepath.Join(l.Root, emptyPayloadFile)
}

func (l Layout) LinkFile(linkID string) string {
	return filepath.Join(l.LinksDir(), linkID+linkFileExt)
}

// ObjectPayloadFile resolves a payload's path: the filename carries
// the name of the formatter that produced the bytes as its extension.
func (l Layout) ObjectPayloadFile(instID, fmtName string) string {
	return filepath.Join(l.ObjectsDir(), instID+"."+fmtName)
}

// ensureDirs creates every directory the layout needs, matching
// DAGStore.NewDAGStore's up-front MkdirAll pass.
func (l Layout) ensureDirs() error {
	for _, dir := range []string{l.Root, l.ObjectsDir(), l.LinksDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// ClearDirs removes any existing archive contents at Root before a
// fresh Save.
func (l Layout) ClearDirs() error {
	if err := os.RemoveAll(l.Root); err != nil {
		return err
	}
	return l.ensureDirs()
}
