package eval

import "context"

type ListOpts struct {
	StudentID string
	ToolID    string
	Status    Status
	Limit     int
	Offset    int
}

// Store is durable EvaluationRecord storage. Create enforces the at-most-one
// active record rule per (student, tool) atomically with the insert.
type Store interface {
	Create(ctx context.Context, r Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	FindByStudent(ctx context.Context, studentID string) ([]Record, error)
	FindByTool(ctx context.Context, toolID string) ([]Record, error)
	List(ctx context.Context, opts ListOpts) ([]Record, error)
	Update(ctx context.Context, r Record) (Record, error)
	Delete(ctx context.Context, id string) error

	// WithTx runs fn against a store view whose reads and writes form one
	// unit of work. Read-modify-write sequences (count updates, status
	// transitions) go through here so the record read cannot go stale before
	// its rewrite commits.
	WithTx(ctx context.Context, fn func(Store) error) error
}
