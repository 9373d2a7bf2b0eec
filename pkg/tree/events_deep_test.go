package tree

import (
	"sync"
	"testing"

	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

func TestForwardDeepTranslatesCodes(t *testing.T) {
	child := newEventGroup("child")
	parent := newEventGroup("parent")
	child.AddForwardDeep(parent)

	var mu sync.Mutex
	var got []EventMask
	var wg sync.WaitGroup
	wg.Add(2)
	parent.Subscribe(EvAll, func(a Ack) {
		mu.Lock()
		got = append(got, a.Code)
		mu.Unlock()
		wg.Done()
	})

	child.Emit(Ack{Code: EvLinkRenamed, Origin: bsid.NewID(), Params: bsid.NewPropDict()})
	child.Emit(Ack{Code: EvLinkInserted, Origin: bsid.NewID(), Params: bsid.NewPropDict()})
	// LinkDeleted has no deep form and must stop at the hop.
	child.Emit(Ack{Code: EvLinkDeleted, Origin: bsid.NewID(), Params: bsid.NewPropDict()})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != EvDeepRename || got[1] != EvDeepData {
		t.Fatalf("expected [DeepRename DeepData], got %v", got)
	}
}

func TestRemoveForwardStopsRetransmission(t *testing.T) {
	child := newEventGroup("child")
	parent := newEventGroup("parent")
	child.AddForward(parent)
	child.RemoveForward(parent)

	forwarded := false
	parent.Subscribe(EvAll, func(Ack) { forwarded = true })

	var wg sync.WaitGroup
	wg.Add(1)
	child.Subscribe(EvAll, func(Ack) { wg.Done() })
	child.Emit(Ack{Code: EvLinkRenamed})
	wg.Wait()

	if forwarded {
		t.Fatalf("removed forward target still received the ack")
	}
}

func TestGrandchildActivitySurfacesAsDeepDataAtRoot(t *testing.T) {
	root := NewNode()
	child := NewNode()
	dir := NewHardLink("dir", NewObjectNode("folder", child))
	if _, err := root.Insert(dir, DenyDupNames); err != nil {
		t.Fatalf("insert dir: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var deep Ack
	root.Subscribe(EvDeepData, func(a Ack) {
		deep = a
		wg.Done()
	})

	if _, err := child.Insert(NewHardLink("g", NewObject("text", nil)), DenyDupNames); err != nil {
		t.Fatalf("insert grandchild: %v", err)
	}
	wg.Wait()

	if deep.Code != EvDeepData {
		t.Fatalf("expected the grandchild insert to reach the root as DeepData, got %v", deep.Code)
	}
	if deep.Origin != child.ID() {
		t.Fatalf("deep ack should keep the originating engine's ID")
	}
}

func TestDeepRenamePropagatesUpward(t *testing.T) {
	root := NewNode()
	child := NewNode()
	leaf := NewHardLink("old", NewObject("text", nil))
	if _, err := child.Insert(leaf, DenyDupNames); err != nil {
		t.Fatalf("insert leaf: %v", err)
	}
	if _, err := root.Insert(NewHardLink("dir", NewObjectNode("folder", child)), DenyDupNames); err != nil {
		t.Fatalf("insert dir: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	root.Subscribe(EvDeepRename, func(Ack) { wg.Done() })

	if got := leaf.Rename("new"); got != 1 {
		t.Fatalf("rename should report 1")
	}
	wg.Wait()
}

func TestErasedLinkStopsFeedingOldOwner(t *testing.T) {
	root := NewNode()
	leaf := NewHardLink("x", NewObject("text", nil))
	if _, err := root.Insert(leaf, DenyDupNames); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := root.Erase("x", KeyName); got != 1 {
		t.Fatalf("erase: got %d", got)
	}

	var mu sync.Mutex
	sawDeep := false
	root.Subscribe(EvDeepRename, func(Ack) {
		mu.Lock()
		sawDeep = true
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(1)
	leaf.Subscribe(EvLinkRenamed, func(Ack) { wg.Done() })
	leaf.Rename("y")
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if sawDeep {
		t.Fatalf("an erased link's acks must not reach its former owner")
	}
}
