package tree

import (
	"errors"
	"testing"

	"github.com/bluesky-tree/bskernel/pkg/bserr"
)

func TestSymLinkResolvesRelativeToOwner(t *testing.T) {
	root := NewNode()
	target := NewHardLink("a", NewObject("text", []byte("payload")))
	if _, err := root.Insert(target, DenyDupNames); err != nil {
		t.Fatalf("insert target: %v", err)
	}

	sym := NewSymLink("s", "a")
	if _, err := root.Insert(sym, DenyDupNames); err != nil {
		t.Fatalf("insert sym: %v", err)
	}

	obj, err := sym.Data(0)
	if err != nil {
		t.Fatalf("sym Data: %v", err)
	}
	want, _ := target.Data(OptErrorIfBusy)
	if obj != want {
		t.Fatalf("sym link resolved to the wrong object")
	}
}

func TestSymLinkUnattachedFails(t *testing.T) {
	sym := NewSymLink("s", "anywhere")
	_, err := sym.Data(0)
	if !errors.Is(err, bserr.New(bserr.CodeLinkBadPath)) {
		t.Fatalf("expected LinkBadPath for an unattached sym link, got %v", err)
	}
}

func TestCheckAlive(t *testing.T) {
	root := NewNode()
	if _, err := root.Insert(NewHardLink("a", NewObject("text", nil)), DenyDupNames); err != nil {
		t.Fatalf("insert a: %v", err)
	}

	alive := NewSymLink("ok", "a")
	if _, err := root.Insert(alive, DenyDupNames); err != nil {
		t.Fatalf("insert ok: %v", err)
	}
	dead := NewSymLink("bad", "missing")
	if _, err := root.Insert(dead, DenyDupNames); err != nil {
		t.Fatalf("insert bad: %v", err)
	}

	if !alive.CheckAlive() {
		t.Fatalf("sym over an existing target should be alive")
	}
	if dead.CheckAlive() {
		t.Fatalf("sym over a missing target should not be alive")
	}
	if NewSymLink("loose", "a").CheckAlive() {
		t.Fatalf("unattached sym should not be alive")
	}

	root.Erase("a", KeyName)
	if alive.CheckAlive() {
		t.Fatalf("erasing the target should kill the sym")
	}
}

func TestSymDotResolvesToContainingLink(t *testing.T) {
	root := NewNode()
	child := NewNode()
	dir := NewHardLink("dir", NewObjectNode("folder", child))
	if _, err := root.Insert(dir, DenyDupNames); err != nil {
		t.Fatalf("insert dir: %v", err)
	}

	dot := NewSymLink("self", ".")
	if _, err := child.Insert(dot, DenyDupNames); err != nil {
		t.Fatalf("insert self: %v", err)
	}

	if !dot.CheckAlive() {
		t.Fatalf("a '.' sym inside a handled node should be alive")
	}
	n, err := dot.DataNode(0)
	if err != nil {
		t.Fatalf("'.' DataNode: %v", err)
	}
	if n != child {
		t.Fatalf("'.' should resolve back to its own containing node")
	}
}

func TestAbsPathWalksHandleChain(t *testing.T) {
	root := NewNode()
	mid := NewNode()
	leafNode := NewNode()

	leaf := NewHardLink("leaf", NewObject("text", nil))
	if _, err := leafNode.Insert(leaf, DenyDupNames); err != nil {
		t.Fatalf("insert leaf: %v", err)
	}
	if _, err := mid.Insert(NewHardLink("inner", NewObjectNode("folder", leafNode)), DenyDupNames); err != nil {
		t.Fatalf("insert inner: %v", err)
	}
	if _, err := root.Insert(NewHardLink("top", NewObjectNode("folder", mid)), DenyDupNames); err != nil {
		t.Fatalf("insert top: %v", err)
	}

	if got := AbsPath(leaf); got != "/top/inner/leaf" {
		t.Fatalf("abs path = %q, want /top/inner/leaf", got)
	}
}
