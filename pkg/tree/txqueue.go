package tree

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/bluesky-tree/bskernel/internal/logger"
	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

// goroutineID extracts the numeric id Go prints at the head of
// runtime.Stack output (e.g. "goroutine 7 [running]:"). There is no
// public API for a goroutine's identity; this is the standard
// workaround and is only ever used to let TxQueue recognize when a
// synchronous call originates from its own dedicated goroutine so it
// can avoid deadlocking on its own mailbox.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}

// TxQueue is the process-wide serialization point for user closures:
// event-handler callbacks and object transactions run one at a time,
// in enqueue order, on TxQueue's single dedicated goroutine.
//
// A goroutine draining a buffered channel, torn down by closing the
// channel and waiting on a sync.WaitGroup.
type TxQueue struct {
	mailbox  chan func()
	ownerGID uint64
	wg       sync.WaitGroup
	closed   int32
}

// NewTxQueue starts the queue's dedicated goroutine and blocks until
// it has recorded its own goroutine id.
func NewTxQueue(capacity int) *TxQueue {
	if capacity <= 0 {
		capacity = 256
	}
	q := &TxQueue{mailbox: make(chan func(), capacity)}
	started := make(chan struct{})
	q.wg.Add(1)
	go q.loop(started)
	<-started
	return q
}

func (q *TxQueue) loop(started chan struct{}) {
	defer q.wg.Done()
	atomic.StoreUint64(&q.ownerGID, goroutineID())
	close(started)
	for fn := range q.mailbox {
		_ = bserr.Safe(func() error {
			fn()
			return nil
		})
	}
}

// isReentrant reports whether the calling goroutine is the queue's own
// dedicated goroutine — i.e. this call originates from inside a
// closure the queue itself is currently running.
func (q *TxQueue) isReentrant() bool {
	return goroutineID() == atomic.LoadUint64(&q.ownerGID)
}

// Async invokes fn for side effects only; a panic inside fn is
// swallowed and logged, never propagated.
func (q *TxQueue) Async(fn func()) {
	if atomic.LoadInt32(&q.closed) != 0 {
		return
	}
	job := func() {
		if err := bserr.Safe(func() error { fn(); return nil }); err != nil {
			logger.Log("txqueue: async transaction panicked: %v", err)
		}
	}
	if q.isReentrant() {
		// Called from inside a job the queue is running: enqueue behind
		// it without blocking, so fn still runs after the current job.
		// Only when the mailbox is full does fn run on its own
		// goroutine, since waiting would block the queue on itself.
		select {
		case q.mailbox <- job:
		default:
			go job()
		}
		return
	}
	q.mailbox <- job
}

// Sync invokes fn and returns its transaction result. If the calling
// goroutine is the queue's own (reentrant) or anonymous is set, fn
// runs on a short-lived one-shot worker instead of enqueueing, which
// would deadlock; after Stop, every Sync call runs that way.
func (q *TxQueue) Sync(fn func() (*bsid.PropDict, error), anonymous bool) (*bsid.PropDict, error) {
	if q.isReentrant() || anonymous || atomic.LoadInt32(&q.closed) != 0 {
		return runSyncJob(fn)
	}
	type result struct {
		info *bsid.PropDict
		err  error
	}
	resCh := make(chan result, 1)
	q.mailbox <- func() {
		info, err := runSyncJob(fn)
		resCh <- result{info, err}
	}
	r := <-resCh
	return r.info, r.err
}

func runSyncJob(fn func() (*bsid.PropDict, error)) (*bsid.PropDict, error) {
	var info *bsid.PropDict
	err := bserr.Safe(func() error {
		var innerErr error
		info, innerErr = fn()
		return innerErr
	})
	return info, err
}

// Stop drains and halts the queue. Further Async calls are no-ops;
// further Sync calls run as anonymous one-shot workers.
func (q *TxQueue) Stop() {
	if !atomic.CompareAndSwapInt32(&q.closed, 0, 1) {
		return
	}
	close(q.mailbox)
	q.wg.Wait()
}

var (
	defaultQueueOnce sync.Once
	defaultQueue     *TxQueue
)

// Queue returns the process-wide transaction queue, starting it on
// first use.
func Queue() *TxQueue {
	defaultQueueOnce.Do(func() {
		defaultQueue = NewTxQueue(256)
	})
	return defaultQueue
}

// ShutdownQueue stops the process-wide queue, if started. Part of the
// kernel's two-phase shutdown.
func ShutdownQueue() {
	if defaultQueue != nil {
		defaultQueue.Stop()
	}
}
