// Package neo4jexport mirrors a live tree into Neo4j as (:Node)/(:Leaf)
// vertices connected by typed [:LINK] edges, so the tree can be
// explored with Cypher. One MERGE per link keeps repeated exports
// idempotent.
package neo4jexport

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bluesky-tree/bskernel/pkg/tree"
)

// Exporter writes tree snapshots to a Neo4j database.
type Exporter struct {
	driver neo4j.DriverWithContext
}

func NewExporter(driver neo4j.DriverWithContext) *Exporter {
	return &Exporter{driver: driver}
}

// Export mirrors the subtree rooted at root into the database,
// starting a fresh session scoped to ctx.
func (e *Exporter) Export(ctx context.Context, root *tree.Node) error {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		visited := make(map[string]bool)
		return nil, e.exportNode(ctx, tx, root, visited)
	})
	return err
}

func (e *Exporter) exportNode(ctx context.Context, tx neo4j.ManagedTransaction, n *tree.Node, visited map[string]bool) error {
	id := n.ID().String()
	if visited[id] {
		return nil
	}
	visited[id] = true

	if _, err := tx.Run(ctx,
		`MERGE (n:Node {id: $id})`,
		map[string]any{"id": id},
	); err != nil {
		return err
	}

	for i := 0; i < n.Size(); i++ {
		link, ok := n.Index(i)
		if !ok {
			continue
		}
		obj, err := link.Data(tree.OptErrorIfBusy)
		if err != nil {
			continue // unresolved pointee: export the link-free node only
		}

		if child, isNode := obj.Node(); isNode {
			if _, err := tx.Run(ctx, `
				MERGE (n:Node {id: $parent})
				MERGE (c:Node {id: $child})
				MERGE (n)-[:LINK {name: $name, variant: $variant}]->(c)`,
				map[string]any{
					"parent":  n.ID().String(),
					"child":   child.ID().String(),
					"name":    link.Name(),
					"variant": link.Variant().String(),
				}); err != nil {
				return err
			}
			if err := e.exportNode(ctx, tx, child, visited); err != nil {
				return err
			}
			continue
		}

		if _, err := tx.Run(ctx, `
			MERGE (n:Node {id: $parent})
			MERGE (l:Leaf {id: $obj})
			MERGE (n)-[:LINK {name: $name, variant: $variant}]->(l)`,
			map[string]any{
				"parent":  n.ID().String(),
				"obj":     obj.ObjectID(),
				"name":    link.Name(),
				"variant": link.Variant().String(),
			}); err != nil {
			return err
		}
	}
	return nil
}
