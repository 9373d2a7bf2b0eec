// Command bskernel-demo builds a small tree, links it up with hard,
// sym and weak links, saves it to a filesystem archive, then reloads and
// prints it back — an end-to-end smoke test of the kernel's public
// facade.
package main

import (
	"fmt"
	"os"

	"github.com/bluesky-tree/bskernel/pkg/archive"
	"github.com/bluesky-tree/bskernel/pkg/kernel"
	"github.com/bluesky-tree/bskernel/pkg/tree"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bskernel-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	k := kernel.MustInit()
	defer k.Shutdown()

	root := k.Root()

	greeting := tree.NewObject("text", []byte("hello from bskernel"))
	hard := tree.NewHardLink("greeting", greeting)
	if _, err := root.Insert(hard, tree.DenyDupNames); err != nil {
		return err
	}

	child := tree.NewNode()
	childObj := tree.NewObjectNode("folder", child)
	childLink := tree.NewHardLink("sub", childObj)
	if _, err := root.Insert(childLink, tree.DenyDupNames); err != nil {
		return err
	}

	alias := tree.NewSymLink("alias-to-sub", "sub")
	if _, err := root.Insert(alias, tree.DenyDupNames); err != nil {
		return err
	}

	weak := tree.NewWeakLink("weak-greeting", greeting)
	if _, err := root.Insert(weak, tree.DenyDupNames); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "bskernel-demo-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	registry := archive.NewFormatterRegistry()
	registry.Register("text", archive.BytesFormatter{})

	w := archive.NewWriter(dir, registry, archive.SaveOpts{ClearDirs: true})
	if err := w.Save(root); err != nil {
		return err
	}

	reader := archive.NewReader(dir, registry, archive.LoadOpts{})
	reloaded, err := reader.Load()
	if err != nil {
		return err
	}

	fmt.Printf("saved and reloaded %d entries from %s:\n", reloaded.Size(), dir)
	for _, name := range reloaded.Keys() {
		fmt.Println(" -", name)
	}
	return nil
}
