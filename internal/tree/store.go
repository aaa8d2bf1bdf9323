package tree

import "context"

// Store is durable key-addressed TreeNode storage. Put validates the per-node
// invariants before committing; Delete refuses to remove a node that still has
// children. Sibling reads are totally ordered by (index asc, id asc).
type Store interface {
	Get(ctx context.Context, id string) (Node, error)
	Put(ctx context.Context, n Node) error
	Delete(ctx context.Context, id string) error
	FindChildren(ctx context.Context, parentID string) ([]Node, error)
	FindRoots(ctx context.Context) ([]Node, error)

	// WithTx runs fn against a store view whose writes commit together or not
	// at all. Multi-row mutations (reorders, cascades, index shifts) go
	// through here so readers never observe a partially applied sibling set.
	WithTx(ctx context.Context, fn func(Store) error) error
}
