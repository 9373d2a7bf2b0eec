package tree

import (
	"sync"
	"sync/atomic"

	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/bsid"
)

var defMailboxCap atomic.Int32

func init() { defMailboxCap.Store(64) }

// SetMailboxCapacity sets the buffer size used for the mailboxes of
// engines created after the call. Non-positive values are ignored.
func SetMailboxCapacity(n int) {
	if n > 0 {
		defMailboxCap.Store(int32(n))
	}
}

func mailboxCapacity() int { return int(defMailboxCap.Load()) }

// actorHandle is the minimal surface an engine's actor exposes: run a
// closure and wait for it (Do, used by blocking public calls) or
// enqueue it without waiting (Cast, used by acks and fire-and-forget
// work). mailboxActor serializes everything that passes through
// Do/Cast; the nil engine's inlineActor runs each closure directly on
// the calling goroutine.
type actorHandle interface {
	Do(fn func())
	Cast(fn func())
	Stop()
}

// mailboxActor is a goroutine draining a buffered channel of closures,
// one per live engine — the concurrency unit each link and node runs
// its jobs on. A single `for job := range mailbox` loop reading from a
// buffered channel, shut down by closing the channel and waiting on a
// sync.WaitGroup.
type mailboxActor struct {
	mailbox chan func()
	wg      sync.WaitGroup
}

func newMailboxActor(capacity int) *mailboxActor {
	if capacity <= 0 {
		capacity = 64
	}
	a := &mailboxActor{mailbox: make(chan func(), capacity)}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *mailboxActor) loop() {
	defer a.wg.Done()
	for fn := range a.mailbox {
		_ = bserr.Safe(func() error {
			fn()
			return nil
		})
	}
}

// Do enqueues fn and blocks until it has run, preserving the engine's
// per-message arrival-order guarantee for synchronous public calls.
func (a *mailboxActor) Do(fn func()) {
	done := make(chan struct{})
	a.mailbox <- func() {
		fn()
		close(done)
	}
	<-done
}

// Cast enqueues fn without waiting for it to run.
func (a *mailboxActor) Cast(fn func()) {
	a.mailbox <- fn
}

// Stop closes the mailbox and waits for the goroutine to drain it, the
// first half of a two-phase actor-system shutdown.
func (a *mailboxActor) Stop() {
	close(a.mailbox)
	a.wg.Wait()
}

// inlineActor runs every job synchronously on the caller's goroutine
// and never starts a thread — backs the nil engine singleton, which
// must never spawn a goroutine.
type inlineActor struct{}

func (inlineActor) Do(fn func())   { fn() }
func (inlineActor) Cast(fn func()) { fn() }
func (inlineActor) Stop()          {}

// engineBase is embedded by every concrete engine (linkImpl, nodeImpl)
// to supply the shared triple {home, actor, impl}: the struct embedding
// engineBase *is* the impl pointer, engineBase carries the home group,
// and the actor is spawned lazily on first RawActor() call.
type engineBase struct {
	id         bsid.ID
	typeID     string
	home       *EventGroup
	mailboxCap int

	spawnOnce sync.Once
	actor     actorHandle
	inline    bool // true only for the nil singleton
}

func newEngineBase(typeID string, mailboxCap int) *engineBase {
	id := bsid.NewID()
	return &engineBase{
		id:         id,
		typeID:     typeID,
		home:       newEventGroup(id.HomeID()),
		mailboxCap: mailboxCap,
	}
}

func newNilEngineBase(typeID string) *engineBase {
	id := bsid.NewID()
	return &engineBase{id: id, typeID: typeID, home: newEventGroup(id.HomeID()), inline: true}
}

// restoreID replaces the freshly minted ID (and its paired home event
// group) with id, used when reconstructing an engine from a saved
// archive so link and node identity survives a save/load round trip.
func (e *engineBase) restoreID(id bsid.ID) {
	e.id = id
	e.home = newEventGroup(id.HomeID())
}

func (e *engineBase) ID() bsid.ID       { return e.id }
func (e *engineBase) TypeID() string    { return e.typeID }
func (e *engineBase) HomeID() string    { return e.id.HomeID() }
func (e *engineBase) Home() *EventGroup { return e.home }

// RawActor lazily spawns the actor on first call, idempotently and
// thread-safely.
func (e *engineBase) RawActor() actorHandle {
	e.spawnOnce.Do(func() {
		if e.inline {
			e.actor = inlineActor{}
		} else {
			e.actor = newMailboxActor(e.mailboxCap)
		}
	})
	return e.actor
}

// EngineCore is the public surface shared by every link and node
// engine handle.
type EngineCore interface {
	TypeID() string
	HomeID() string
	Home() *EventGroup
	RawActor() actorHandle
}
