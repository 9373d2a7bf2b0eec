// Command bsarchive-export loads a saved filesystem archive and mirrors
// it into Neo4j via pkg/archive/neo4jexport, so the tree can be browsed
// with Cypher.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bluesky-tree/bskernel/pkg/archive"
	"github.com/bluesky-tree/bskernel/pkg/archive/neo4jexport"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: bsarchive-export <archive-dir>")
		os.Exit(1)
	}
	dir := os.Args[1]

	uri := envOr("BSARCHIVE_NEO4J_URI", "neo4j://localhost:7687")
	user := envOr("BSARCHIVE_NEO4J_USER", "neo4j")
	pass := os.Getenv("BSARCHIVE_NEO4J_PASSWORD")

	registry := archive.NewFormatterRegistry()
	registry.Register("text", archive.BytesFormatter{})

	reader := archive.NewReader(dir, registry, archive.LoadOpts{Lazy: true})
	root, err := reader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "bsarchive-export:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		fmt.Fprintln(os.Stderr, "bsarchive-export:", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)

	exporter := neo4jexport.NewExporter(driver)
	if err := exporter.Export(ctx, root); err != nil {
		fmt.Fprintln(os.Stderr, "bsarchive-export:", err)
		os.Exit(1)
	}
	fmt.Println("bsarchive-export: exported", dir, "to", uri)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
