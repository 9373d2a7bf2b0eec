package tree

import "testing"

func TestCloneShallowSharesPointee(t *testing.T) {
	obj := NewObject("text", []byte("shared"))
	l := NewHardLink("orig", obj)
	l.SetFlags(FlagPlain | FlagPersistent)

	c := l.Clone(false)
	if c.ID() == l.ID() {
		t.Fatalf("clone must mint a fresh link ID")
	}
	if c.Name() != "orig" {
		t.Fatalf("clone should carry the source name, got %q", c.Name())
	}
	if c.Flags() != l.Flags() {
		t.Fatalf("clone should carry the source flags")
	}

	got, err := c.Data(OptErrorIfBusy)
	if err != nil {
		t.Fatalf("clone Data: %v", err)
	}
	if got != obj {
		t.Fatalf("shallow clone must alias the same pointee object")
	}
}

func TestCloneDeepCopiesSubtree(t *testing.T) {
	child := NewNode()
	if _, err := child.Insert(NewHardLink("leaf", NewObject("text", []byte("v"))), DenyDupNames); err != nil {
		t.Fatalf("insert leaf: %v", err)
	}
	l := NewHardLink("dir", NewObjectNode("folder", child))

	c := l.Clone(true)
	cn, err := c.DataNode(OptErrorIfBusy)
	if err != nil {
		t.Fatalf("clone DataNode: %v", err)
	}
	if cn == child {
		t.Fatalf("deep clone must not alias the source node")
	}
	if cn.Size() != 1 {
		t.Fatalf("deep clone should reproduce the subtree, got size %d", cn.Size())
	}
	cl, ok := cn.Find("leaf")
	if !ok {
		t.Fatalf("deep clone lost the leaf entry")
	}
	orig, _ := child.Find("leaf")
	if cl.ID() == orig.ID() {
		t.Fatalf("deep clone must mint fresh IDs for cloned leafs")
	}

	// Mutating the clone must not leak into the original.
	if _, err := cn.Insert(NewHardLink("extra", NewObject("text", nil)), DenyDupNames); err != nil {
		t.Fatalf("insert into clone: %v", err)
	}
	if child.Size() != 1 {
		t.Fatalf("mutating the clone leaked into the original subtree")
	}
}

func TestCloneSymCarriesPath(t *testing.T) {
	l := NewSymLink("s", "a/b")
	c := l.Clone(false)
	if c.Variant() != VariantSym {
		t.Fatalf("expected a sym clone, got %v", c.Variant())
	}
	if c.Path() != "a/b" {
		t.Fatalf("sym clone should carry the target path, got %q", c.Path())
	}
}
