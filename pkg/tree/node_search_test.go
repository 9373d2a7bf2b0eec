package tree

import (
	"testing"

	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

func buildTypedNode(t *testing.T) (*Node, *Link, *Link, *Link) {
	t.Helper()
	n := NewNode()
	doc := NewHardLink("doc", NewObject("text", []byte("d")))
	img := NewHardLink("img", NewObject("image", []byte("i")))
	note := NewHardLink("note", NewObject("text", []byte("n")))
	for _, l := range []*Link{doc, img, note} {
		if _, err := n.Insert(l, DenyDupNames); err != nil {
			t.Fatalf("insert %s: %v", l.Name(), err)
		}
	}
	return n, doc, img, note
}

func TestFindKeyByObjectType(t *testing.T) {
	n, doc, img, _ := buildTypedNode(t)

	got, ok := n.FindKey("image", KeyOType)
	if !ok || got.ID() != img.ID() {
		t.Fatalf("expected the image entry by object type")
	}
	texts := n.EqualRange("text", KeyOType)
	if len(texts) != 2 {
		t.Fatalf("expected 2 text entries, got %d", len(texts))
	}
	if texts[0].ID() != doc.ID() {
		t.Fatalf("object-type matches should keep insertion order")
	}
	if _, ok := n.FindKey("video", KeyOType); ok {
		t.Fatalf("expected no match for an absent type")
	}
}

func TestFindKeyByObjectID(t *testing.T) {
	n, doc, _, _ := buildTypedNode(t)

	obj, err := doc.Data(OptErrorIfBusy)
	if err != nil {
		t.Fatalf("doc Data: %v", err)
	}
	got, ok := n.FindKey(obj.ObjectID(), KeyOID)
	if !ok || got.ID() != doc.ID() {
		t.Fatalf("expected the doc entry by object instance ID")
	}
	if idx, ok := n.IndexOfKey(obj.ObjectID(), KeyOID); !ok || idx != 0 {
		t.Fatalf("expected index 0 for doc, got %d ok=%v", idx, ok)
	}
}

func TestEraseByObjectType(t *testing.T) {
	n, _, img, _ := buildTypedNode(t)

	if got := n.Erase("text", KeyOType); got != 2 {
		t.Fatalf("expected 2 text entries erased, got %d", got)
	}
	if n.Size() != 1 {
		t.Fatalf("expected only the image entry left, got %d", n.Size())
	}
	if _, ok := n.FindID(img.ID()); !ok {
		t.Fatalf("the image entry should survive")
	}
}

func TestSKeysDistinctSorted(t *testing.T) {
	n, _, _, _ := buildTypedNode(t)

	types := n.SKeys(KeyOType)
	if len(types) != 2 || types[0] != "image" || types[1] != "text" {
		t.Fatalf("expected distinct sorted type keys [image text], got %v", types)
	}
	names := n.SKeys(KeyName)
	if len(names) != 3 || names[0] != "doc" {
		t.Fatalf("expected 3 sorted names starting with doc, got %v", names)
	}
}

func TestIndexesStayMutuallyConsistent(t *testing.T) {
	n, doc, img, note := buildTypedNode(t)

	if n.Size() != len(n.Leafs()) || n.Size() != len(n.IDs()) || n.Size() != len(n.Keys()) {
		t.Fatalf("order, ID and name views disagree on cardinality")
	}

	for _, l := range []*Link{doc, img, note} {
		byID, ok := n.FindID(l.ID())
		if !ok || byID.ID() != l.ID() {
			t.Fatalf("FindID lost %s", l.Name())
		}
		idx, ok := n.IndexOf(l.ID())
		if !ok {
			t.Fatalf("IndexOf lost %s", l.Name())
		}
		at, _ := n.Index(idx)
		if at.ID() != l.ID() {
			t.Fatalf("Index(%d) disagrees with IndexOf for %s", idx, l.Name())
		}
	}

	// Renaming must keep ID lookups stable and retarget name lookups.
	if got := n.Rename("doc", "paper"); got != 1 {
		t.Fatalf("rename: got %d", got)
	}
	if _, ok := n.Find("doc"); ok {
		t.Fatalf("old name still resolves after rename")
	}
	byName, ok := n.Find("paper")
	if !ok || byName.ID() != doc.ID() {
		t.Fatalf("new name should resolve to the same entry")
	}
	if _, ok := n.FindID(doc.ID()); !ok {
		t.Fatalf("rename must not disturb the ID index")
	}

	// An erased entry disappears from every view at once.
	if got := n.EraseByID(img.ID()); got != 1 {
		t.Fatalf("erase by id: got %d", got)
	}
	if _, ok := n.FindID(img.ID()); ok {
		t.Fatalf("erased entry still in ID index")
	}
	if _, ok := n.Find("img"); ok {
		t.Fatalf("erased entry still in name index")
	}
	if n.Size() != 2 || len(n.IDs()) != 2 {
		t.Fatalf("views disagree after erase")
	}
}

func TestRearrangeIDsRoundTrip(t *testing.T) {
	n, _, _, _ := buildTypedNode(t)

	before := n.IDs()
	reversed := append([]bsid.ID(nil), before...)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	if err := n.RearrangeIDs(reversed); err != nil {
		t.Fatalf("rearrange to reversed: %v", err)
	}
	if err := n.RearrangeIDs(before); err != nil {
		t.Fatalf("rearrange back: %v", err)
	}
	after := n.IDs()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("round-tripped order differs at %d", i)
		}
	}
}

func TestDeepFindAcrossSubtrees(t *testing.T) {
	root := NewNode()
	sub := NewNode()
	deep := NewHardLink("buried", NewObject("secret", []byte("s")))
	if _, err := sub.Insert(deep, DenyDupNames); err != nil {
		t.Fatalf("insert buried: %v", err)
	}
	if _, err := root.Insert(NewHardLink("top", NewObject("text", nil)), DenyDupNames); err != nil {
		t.Fatalf("insert top: %v", err)
	}
	if _, err := root.Insert(NewHardLink("dir", NewObjectNode("folder", sub)), DenyDupNames); err != nil {
		t.Fatalf("insert dir: %v", err)
	}

	got, ok := root.DeepFindID(deep.ID())
	if !ok || got.ID() != deep.ID() {
		t.Fatalf("DeepFindID should reach into subtrees")
	}
	byKey, ok := root.DeepFindKey("secret", KeyOType)
	if !ok || byKey.ID() != deep.ID() {
		t.Fatalf("DeepFindKey should match by object type in subtrees")
	}
	all := root.DeepEqualRange("buried", KeyName)
	if len(all) != 1 || all[0].ID() != deep.ID() {
		t.Fatalf("DeepEqualRange missed the buried entry")
	}
}

func TestUnsubscribeDeepDetachesWholeSubtree(t *testing.T) {
	root := NewNode()
	sub := NewNode()
	if _, err := root.Insert(NewHardLink("dir", NewObjectNode("folder", sub)), DenyDupNames); err != nil {
		t.Fatalf("insert dir: %v", err)
	}

	// Fresh groups hand out the same first subscription ID, so one
	// registration per level lets a single deep unsubscribe reap all.
	rootID := root.Subscribe(EvAll, func(Ack) {})
	subID := sub.Subscribe(EvAll, func(Ack) {})
	if rootID != subID {
		t.Fatalf("expected matching first-subscription IDs, got %d and %d", rootID, subID)
	}

	root.UnsubscribeDeep(rootID)
	if root.Home().listenerCount() != 0 {
		t.Fatalf("root subscriber should be gone")
	}
	if sub.Home().listenerCount() != 0 {
		t.Fatalf("subtree subscriber should be gone")
	}
}
