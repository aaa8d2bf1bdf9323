package eval

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
	"github.com/brightsteps/brightsteps-assess/internal/tree"
)

// Builder derives a fresh evaluation record from an assessment tool's tree:
// it walks the assembled subtree, keeps the leaves in pre-order, and persists
// a flat score list with completed counts at zero. This is the only place tree
// structure and evaluation structure meet; the snapshot is one-time and later
// tree edits never touch existing records.
type Builder struct {
	nodes     tree.Store
	assembler *tree.Assembler
	records   Store
	now       func() time.Time
}

func NewBuilder(nodes tree.Store, assembler *tree.Assembler, records Store) *Builder {
	return &Builder{nodes: nodes, assembler: assembler, records: records, now: time.Now}
}

func (b *Builder) BuildFromTree(ctx context.Context, studentID, toolID string) (Record, error) {
	if strings.TrimSpace(studentID) == "" {
		return Record{}, apperr.New(apperr.InvalidValue, "student_id is required")
	}
	root, err := b.nodes.Get(ctx, toolID)
	if err != nil {
		return Record{}, err
	}
	if !root.IsRoot {
		return Record{}, apperr.New(apperr.NotARoot, "node %s is not an assessment tool root", toolID)
	}
	subtree, err := b.assembler.AssembleSubtree(ctx, toolID)
	if err != nil {
		return Record{}, err
	}
	leaves := tree.CollectLeaves(subtree)
	scores := make([]Score, 0, len(leaves))
	for _, leaf := range leaves {
		target := 0
		if leaf.TotalCount != nil {
			target = *leaf.TotalCount
		}
		scores = append(scores, Score{
			NodeID:         leaf.ID,
			NodeName:       leaf.Name,
			IsLeaf:         true,
			TargetCount:    target,
			CompletedCount: 0,
		})
	}
	now := b.now().Unix()
	rec := Record{
		ID:        uuid.NewString(),
		StudentID: studentID,
		ToolID:    toolID,
		ToolName:  root.Name,
		Scores:    scores,
		Status:    StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// the store closes the duplicate-active race atomically with the insert
	return b.records.Create(ctx, rec)
}
