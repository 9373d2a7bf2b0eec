package tree

import (
	"testing"

	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

func TestTxQueueSyncReturnsResult(t *testing.T) {
	q := NewTxQueue(4)
	defer q.Stop()

	info, err := q.Sync(func() (*bsid.PropDict, error) {
		return bsid.NewPropDict().Set("ok", bsid.Bool(true)), nil
	}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := info.Get("ok"); !ok {
		t.Fatalf("expected ok key in result")
	} else if b, _ := v.AsBool(); !b {
		t.Fatalf("expected true")
	}
}

func TestTxQueueReentrantSyncDoesNotDeadlock(t *testing.T) {
	q := NewTxQueue(4)
	defer q.Stop()

	done := make(chan struct{})
	q.Async(func() {
		// Calling Sync from inside the queue's own goroutine must not
		// deadlock against the very mailbox it's running from.
		_, err := q.Sync(func() (*bsid.PropDict, error) { return nil, nil }, false)
		if err != nil {
			t.Errorf("reentrant sync failed: %v", err)
		}
		close(done)
	})
	<-done
}

func TestTxQueueAsyncPanicDoesNotKillLoop(t *testing.T) {
	q := NewTxQueue(4)
	defer q.Stop()

	q.Async(func() { panic("boom") })

	done := make(chan struct{})
	q.Async(func() { close(done) })
	<-done
}
