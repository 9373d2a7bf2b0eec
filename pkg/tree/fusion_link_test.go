package tree

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

type blockingBridge struct {
	release chan struct{}
	calls   int32
	obj     *Object
}

func (b *blockingBridge) PullData(*Link, *bsid.PropDict) (*Object, error) {
	atomic.AddInt32(&b.calls, 1)
	<-b.release
	return b.obj, nil
}

func (b *blockingBridge) Populate(*Link, *bsid.PropDict) (*Node, error) {
	return nil, bserr.New(bserr.CodeNotANode)
}

func TestFusionStatusWalksVoidBusyOKOnce(t *testing.T) {
	bridge := &blockingBridge{release: make(chan struct{}), obj: NewObject("text", []byte("x"))}
	l := NewFusionLink("f", bridge, bsid.NewPropDict())

	var mu sync.Mutex
	var transitions []string
	var acks sync.WaitGroup
	acks.Add(2)
	l.Subscribe(EvLinkStatusChanged, func(ack Ack) {
		prevProp, _ := ack.Params.Get("prev_status")
		newProp, _ := ack.Params.Get("new_status")
		prev, _ := prevProp.AsString()
		cur, _ := newProp.AsString()
		mu.Lock()
		transitions = append(transitions, prev+">"+cur)
		mu.Unlock()
		acks.Done()
	})

	var callers sync.WaitGroup
	results := make([]*Object, 8)
	for i := range results {
		callers.Add(1)
		go func(i int) {
			defer callers.Done()
			obj, err := l.Data(OptWaitIfBusy)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = obj
		}(i)
	}

	// Let the workers pile up on the Busy gate before the bridge returns.
	for l.Status(ReqData) != StatusBusy {
		time.Sleep(time.Millisecond)
	}
	close(bridge.release)
	callers.Wait()
	acks.Wait()

	if atomic.LoadInt32(&bridge.calls) != 1 {
		t.Fatalf("expected one bridge invocation for 8 callers, got %d", bridge.calls)
	}
	for i, r := range results {
		if r != bridge.obj {
			t.Fatalf("caller %d got a different object", i)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2 || transitions[0] != "Void>Busy" || transitions[1] != "Busy>OK" {
		t.Fatalf("expected Void>Busy then Busy>OK exactly once, got %v", transitions)
	}
}

type populatingBridge struct {
	obj *Object
}

func (b *populatingBridge) PullData(*Link, *bsid.PropDict) (*Object, error) {
	return b.obj, nil
}

func (b *populatingBridge) Populate(*Link, *bsid.PropDict) (*Node, error) {
	return NewNode(), nil
}

func TestFusionChildInheritsAncestorBridge(t *testing.T) {
	bridge := &populatingBridge{obj: NewObject("text", []byte("remote"))}
	parent := NewFusionLink("mount", bridge, bsid.NewPropDict())

	pn, err := parent.DataNode(0)
	if err != nil {
		t.Fatalf("parent Populate: %v", err)
	}

	child := NewFusionLink("entry", nil, bsid.NewPropDict())
	if _, err := pn.Insert(child, DenyDupNames); err != nil {
		t.Fatalf("insert child: %v", err)
	}

	obj, err := child.Data(0)
	if err != nil {
		t.Fatalf("child Data: %v", err)
	}
	if obj != bridge.obj {
		t.Fatalf("child should resolve through the inherited ancestor bridge")
	}
}

func TestFusionOrphanWithoutBridgeFails(t *testing.T) {
	l := NewFusionLink("f", nil, bsid.NewPropDict())
	_, err := l.Data(0)
	if !errors.Is(err, bserr.New(bserr.CodeEmptyData)) {
		t.Fatalf("expected EmptyData when no bridge is reachable, got %v", err)
	}
}

func TestRequestTimeoutOnBusySlot(t *testing.T) {
	SetDefTimeout(30 * time.Millisecond)
	defer SetDefTimeout(TimeoutInfinite)

	bridge := &blockingBridge{release: make(chan struct{}), obj: NewObject("text", nil)}
	l := NewFusionLink("slow", bridge, bsid.NewPropDict())
	defer close(bridge.release)

	_, err := l.Data(OptWaitIfBusy)
	if !errors.Is(err, bserr.New(bserr.CodeTimeout)) {
		t.Fatalf("expected Timeout while the bridge hangs, got %v", err)
	}

	// ErrorIfBusy refuses to park at all.
	for l.Status(ReqData) != StatusBusy {
		time.Sleep(time.Millisecond)
	}
	_, err = l.Data(OptErrorIfBusy)
	if !errors.Is(err, bserr.New(bserr.CodeTimeout)) {
		t.Fatalf("expected immediate Timeout under ErrorIfBusy, got %v", err)
	}
}
