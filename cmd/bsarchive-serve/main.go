// Command bsarchive-serve exposes a saved filesystem archive over HTTP
// using the chi-based read-only browser in pkg/archive/httpfs.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/bluesky-tree/bskernel/pkg/archive"
	"github.com/bluesky-tree/bskernel/pkg/archive/httpfs"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: bsarchive-serve <archive-dir> [addr]")
		os.Exit(1)
	}
	dir := os.Args[1]
	addr := ":8080"
	if len(os.Args) > 2 {
		addr = os.Args[2]
	}

	registry := archive.NewFormatterRegistry()
	registry.Register("text", archive.BytesFormatter{})

	handler, err := httpfs.NewServer(dir, registry)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bsarchive-serve:", err)
		os.Exit(1)
	}

	fmt.Println("bsarchive-serve: listening on", addr, "serving", dir)
	if err := http.ListenAndServe(addr, handler); err != nil {
		fmt.Fprintln(os.Stderr, "bsarchive-serve:", err)
		os.Exit(1)
	}
}
