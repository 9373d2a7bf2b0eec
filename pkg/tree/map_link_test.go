package tree

import (
	"sync"
	"testing"
)

func TestMapLinkRefreshesOnInputChange(t *testing.T) {
	input := NewNode()
	if _, err := input.Insert(NewHardLink("a", NewObject("text", []byte("1"))), DenyDupNames); err != nil {
		t.Fatalf("insert a: %v", err)
	}

	upper := NewMapLink(func(src *Link, _ *Node, _ Ack, _ *Link) (*Link, MapAction) {
		return NewHardLink(src.Name()+"-mapped", NewObject("text", nil)), MapKeep
	}, "upper", input, EvLinkInserted|EvLinkErased, 0)

	out, err := upper.DataNode(OptErrorIfBusy)
	if err != nil {
		t.Fatalf("initial DataNode: %v", err)
	}
	if out.Size() != 1 {
		t.Fatalf("expected 1 mapped entry, got %d", out.Size())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	upper.Subscribe(EvDataNodeModified, func(Ack) { wg.Done() })

	if _, err := input.Insert(NewHardLink("b", NewObject("text", []byte("2"))), DenyDupNames); err != nil {
		t.Fatalf("insert b: %v", err)
	}
	wg.Wait()

	out2, err := upper.DataNode(OptErrorIfBusy)
	if err != nil {
		t.Fatalf("DataNode after input change: %v", err)
	}
	if out2 != out {
		t.Fatalf("expected the output node to keep its identity across refreshes")
	}
	if out2.Size() != 2 {
		t.Fatalf("expected refresh to pick up the new entry, got %d", out2.Size())
	}
	if _, ok := out2.Find("b-mapped"); !ok {
		t.Fatalf("expected mapped entry for the inserted input link")
	}
}

func TestMapLinkEventTouchesOnlyItsOwnEntry(t *testing.T) {
	input := NewNode()
	if _, err := input.Insert(NewHardLink("a", NewObject("text", []byte("1"))), DenyDupNames); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := input.Insert(NewHardLink("b", NewObject("text", []byte("2"))), DenyDupNames); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	mirror := NewMapLink(func(src *Link, _ *Node, _ Ack, _ *Link) (*Link, MapAction) {
		return NewHardLink(src.Name()+"-mapped", NewObject("text", nil)), MapKeep
	}, "mirror", input, EvLinkInserted|EvLinkErased, MapOptDeep)

	out, err := mirror.DataNode(OptErrorIfBusy)
	if err != nil {
		t.Fatalf("initial DataNode: %v", err)
	}
	aMapped, ok := out.Find("a-mapped")
	if !ok {
		t.Fatalf("expected mapped entry for a")
	}
	aID := aMapped.ID()

	var mods sync.WaitGroup
	mods.Add(1)
	mirror.Subscribe(EvDataNodeModified, func(Ack) { mods.Done() })

	if got := input.Rename("b", "c"); got != 1 {
		t.Fatalf("rename b: got %d", got)
	}
	mods.Wait()

	if _, ok := out.Find("b-mapped"); ok {
		t.Fatalf("expected the renamed entry's old mirror to be replaced")
	}
	if _, ok := out.Find("c-mapped"); !ok {
		t.Fatalf("expected a mirror for the new name")
	}
	after, ok := out.Find("a-mapped")
	if !ok || after.ID() != aID {
		t.Fatalf("expected the untouched entry to keep its link identity")
	}
	if out.Size() != 2 {
		t.Fatalf("expected 2 mirrored entries, got %d", out.Size())
	}
}

func TestMapLinkErasedSourceDropsItsMirror(t *testing.T) {
	input := NewNode()
	if _, err := input.Insert(NewHardLink("a", NewObject("text", nil)), DenyDupNames); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := input.Insert(NewHardLink("b", NewObject("text", nil)), DenyDupNames); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	mirror := NewMapLink(func(src *Link, _ *Node, _ Ack, _ *Link) (*Link, MapAction) {
		return NewHardLink(src.Name(), NewObject("text", nil)), MapKeep
	}, "mirror", input, EvLinkInserted|EvLinkErased, 0)

	out, err := mirror.DataNode(OptErrorIfBusy)
	if err != nil {
		t.Fatalf("initial DataNode: %v", err)
	}

	var mods sync.WaitGroup
	mods.Add(1)
	mirror.Subscribe(EvDataNodeModified, func(Ack) { mods.Done() })

	if got := input.Erase("b", KeyName); got != 1 {
		t.Fatalf("erase b: got %d", got)
	}
	mods.Wait()

	if _, ok := out.Find("b"); ok {
		t.Fatalf("expected the erased source's mirror to be dropped")
	}
	if out.Size() != 1 {
		t.Fatalf("expected 1 surviving mirror, got %d", out.Size())
	}
}

func TestMapLinkNodeModeRunsNodeMapperWholesale(t *testing.T) {
	input := NewNode()
	if _, err := input.Insert(NewHardLink("x", NewObject("text", nil)), DenyDupNames); err != nil {
		t.Fatalf("insert x: %v", err)
	}

	calls := 0
	agg := NewMapLinkNode(func(in, out *Node, _ Ack, _ *Link) error {
		calls++
		_, err := out.Insert(NewHardLink("count", NewObject("text", nil)), AllowDupNames)
		return err
	}, "agg", input, EvLinkInserted, MapOptClearDirs)

	out, err := agg.DataNode(OptErrorIfBusy)
	if err != nil {
		t.Fatalf("DataNode: %v", err)
	}
	if calls != 1 || out.Size() != 1 {
		t.Fatalf("expected nodeMapper to run once producing 1 entry, got calls=%d size=%d", calls, out.Size())
	}
}

func TestMapLinkAccumulatesAcrossRefreshes(t *testing.T) {
	input := NewNode()

	agg := NewMapLinkNode(func(_, out *Node, _ Ack, _ *Link) error {
		_, err := out.Insert(NewHardLink("t", NewObject("text", nil)), AllowDupNames)
		return err
	}, "agg", input, EvLinkInserted, 0)

	var mu sync.Mutex
	nilCount, modCount := 0, 0
	var mods sync.WaitGroup
	mods.Add(10)
	agg.Subscribe(EvNil|EvDataNodeModified, func(ack Ack) {
		mu.Lock()
		defer mu.Unlock()
		switch ack.Code {
		case EvNil:
			nilCount++
		case EvDataNodeModified:
			modCount++
			mods.Done()
		}
	})

	out, err := agg.DataNode(0)
	if err != nil {
		t.Fatalf("DataNode: %v", err)
	}
	if out.Size() != 1 {
		t.Fatalf("first build should produce one entry, got %d", out.Size())
	}

	for i := 0; i < 10; i++ {
		if _, err := input.Insert(NewHardLink("N", NewObject("text", nil)), AllowDupNames); err != nil {
			t.Fatalf("insert N: %v", err)
		}
	}
	mods.Wait()

	if out.Size() != 11 {
		t.Fatalf("expected 1 initial + 10 refreshed entries, got %d", out.Size())
	}
	mu.Lock()
	defer mu.Unlock()
	if nilCount != 1 {
		t.Fatalf("expected exactly one first-build ack, got %d", nilCount)
	}
	if modCount != 10 {
		t.Fatalf("expected exactly ten refresh acks, got %d", modCount)
	}
}

func TestMapLinkMuteOutputNode(t *testing.T) {
	input := NewNode()
	if _, err := input.Insert(NewHardLink("a", NewObject("text", nil)), DenyDupNames); err != nil {
		t.Fatalf("insert a: %v", err)
	}

	muted := NewMapLink(func(src *Link, _ *Node, _ Ack, _ *Link) (*Link, MapAction) {
		return src.Clone(false), MapKeep
	}, "muted", input, EvLinkInserted, MapOptMuteOutputNode)

	var mu sync.Mutex
	inserted := 0
	var mods sync.WaitGroup
	mods.Add(1)
	muted.Subscribe(EvLinkInserted|EvDataNodeModified, func(ack Ack) {
		mu.Lock()
		defer mu.Unlock()
		if ack.Code == EvLinkInserted {
			inserted++
			return
		}
		mods.Done()
	})

	out, err := muted.DataNode(0)
	if err != nil {
		t.Fatalf("DataNode: %v", err)
	}
	if h := out.HandleLink(); h == nil || h.ID() != muted.ID() {
		t.Fatalf("muting must not sever the output node's handle")
	}

	if _, err := input.Insert(NewHardLink("b", NewObject("text", nil)), DenyDupNames); err != nil {
		t.Fatalf("insert b: %v", err)
	}
	mods.Wait()

	mu.Lock()
	defer mu.Unlock()
	if inserted != 0 {
		t.Fatalf("output-node acks should not surface on a muted map link, got %d", inserted)
	}
}

func TestMakeOTIDFilterKeepsMatchingTypes(t *testing.T) {
	input := NewNode()
	if _, err := input.Insert(NewHardLink("doc", NewObject("text", []byte("d"))), DenyDupNames); err != nil {
		t.Fatalf("insert doc: %v", err)
	}
	if _, err := input.Insert(NewHardLink("img", NewObject("image", []byte("i"))), DenyDupNames); err != nil {
		t.Fatalf("insert img: %v", err)
	}

	texts := NewMapLink(MakeOTIDFilter("text"), "texts", input, EvLinkInserted|EvLinkErased, 0)

	out, err := texts.DataNode(OptErrorIfBusy)
	if err != nil {
		t.Fatalf("DataNode: %v", err)
	}
	if out.Size() != 1 {
		t.Fatalf("expected only the text entry to survive the filter, got %d", out.Size())
	}
	kept, ok := out.Find("doc")
	if !ok {
		t.Fatalf("expected the kept entry to carry the source name")
	}
	if kept.ID() == input.Leafs()[0].ID() {
		t.Fatalf("expected the filter to clone, not alias, the input link")
	}
}
