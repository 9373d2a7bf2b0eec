// Package kernel wires the tree engine's lifecycle: config loading,
// logger setup, root-node installation and a two-phase shutdown.
package kernel

import (
	"fmt"
	"sync"
	"time"

	"github.com/bluesky-tree/bskernel/internal/logger"
	"github.com/bluesky-tree/bskernel/pkg/bserr"
	"github.com/bluesky-tree/bskernel/pkg/tree"
)

// Kernel owns the process-wide tree root and factory, and tracks
// whether it has already been shut down.
type Kernel struct {
	mu       sync.Mutex
	cfg      *Config
	root     *tree.Node
	factory  *tree.Factory
	started  bool
	shutdown bool
}

var (
	instMu   sync.Mutex
	instance *Kernel
)

// Init starts the process-wide kernel instance if one isn't already
// running, loading configuration from BSKERNEL_CONFIG (or defaults)
// and installing a fresh root node. Calling Init twice is a no-op that
// returns the existing instance.
func Init() (*Kernel, error) {
	instMu.Lock()
	defer instMu.Unlock()
	if instance != nil {
		return instance, nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("kernel: load config: %w", err)
	}

	if _, ok := cfg.Loggers["default"]; ok {
		logger.SetLogger(logger.StdLogger{})
	}

	tree.SetMailboxCapacity(cfg.ActorSystem.MailboxCapacity)
	if cfg.RequestTimeoutMS > 0 {
		tree.SetDefTimeout(time.Duration(cfg.RequestTimeoutMS) * time.Millisecond)
	} else {
		tree.SetDefTimeout(tree.TimeoutInfinite)
	}

	rootObj := tree.NewObjectNode("node/root", tree.NewNode())
	root, _ := rootObj.Node()
	tree.SetRoot(root)

	k := &Kernel{cfg: cfg, root: root, factory: tree.NewFactory(), started: true}
	instance = k
	return k, nil
}

// Current returns the running kernel instance, or nil if Init hasn't
// been called.
func Current() *Kernel {
	instMu.Lock()
	defer instMu.Unlock()
	return instance
}

// Root returns the process-wide root node.
func (k *Kernel) Root() *tree.Node { return k.root }

// Factory returns the process-wide object-type factory.
func (k *Kernel) Factory() *tree.Factory { return k.factory }

// Config returns the loaded configuration.
func (k *Kernel) Config() *Config { return k.cfg }

// Shutdown runs the kernel's two-phase shutdown: first it stops
// accepting new root-relative path lookups, then it drains and
// halts the shared transaction queue so no handler or transaction is
// running when Shutdown returns. Calling Shutdown twice is a no-op.
func (k *Kernel) Shutdown() error {
	instMu.Lock()
	defer instMu.Unlock()
	if k.shutdown {
		return nil
	}
	k.shutdown = true

	tree.SetRoot(nil)
	tree.ShutdownQueue()

	if instance == k {
		instance = nil
	}
	return nil
}

// MustInit is Init but panics on error, used by command-line entry
// points where a failed startup should abort immediately.
func MustInit() *Kernel {
	k, err := Init()
	if err != nil {
		panic(bserr.Wrap(bserr.CodeInternal, err))
	}
	return k
}
