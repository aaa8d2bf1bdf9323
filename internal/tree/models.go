package tree

import (
	"strings"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 500
)

// SegmentScore maps an achieved sub-count on a leaf criterion to a normalized
// score contribution in [0,1].
type SegmentScore struct {
	TargetCount int     `json:"target_count"`
	Score       float64 `json:"score"`
}

// Node is one level of an assessment tool hierarchy. Leaf nodes carry the
// scorable payload (TotalCount, SegmentScores); interior nodes never do.
type Node struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	IsRoot        bool           `json:"is_root"`
	IsLeaf        bool           `json:"is_leaf"`
	ParentID      *string        `json:"parent_id,omitempty"`
	Index         int            `json:"index"`
	TotalCount    *int           `json:"total_count,omitempty"`
	SegmentScores []SegmentScore `json:"segment_scores,omitempty"`
	CreatedAt     int64          `json:"created_at,omitempty"`
	UpdatedAt     int64          `json:"updated_at,omitempty"`
}

// Subtree is a read-time composition: a node plus its children in sibling
// order. Only the assembler produces these; they are never persisted.
type Subtree struct {
	Node
	Children []Subtree `json:"children"`
}

// NodeInput is the payload for Mutator.CreateNode. When Index is nil the node
// is appended after the last sibling; an explicit Index shifts later siblings
// up by one.
type NodeInput struct {
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	IsRoot        bool           `json:"is_root"`
	IsLeaf        bool           `json:"is_leaf"`
	ParentID      *string        `json:"parent_id,omitempty"`
	Index         *int           `json:"index,omitempty"`
	TotalCount    *int           `json:"total_count,omitempty"`
	SegmentScores []SegmentScore `json:"segment_scores,omitempty"`
}

// NodePatch is the payload for Mutator.UpdateNode. Nil fields are left as-is.
type NodePatch struct {
	Name          *string         `json:"name,omitempty"`
	Description   *string         `json:"description,omitempty"`
	IsLeaf        *bool           `json:"is_leaf,omitempty"`
	TotalCount    *int            `json:"total_count,omitempty"`
	SegmentScores *[]SegmentScore `json:"segment_scores,omitempty"`
}

// Validate checks the per-node write invariants:
// root nodes have no parent and non-roots have one, leaf payload is present
// exactly on leaves, and every segment target stays within the leaf total.
func Validate(n Node) error {
	name := strings.TrimSpace(n.Name)
	if name == "" {
		return apperr.New(apperr.InvalidValue, "name is required")
	}
	if len(name) > maxNameLen {
		return apperr.New(apperr.InvalidValue, "name exceeds %d characters", maxNameLen)
	}
	if len(n.Description) > maxDescriptionLen {
		return apperr.New(apperr.InvalidValue, "description exceeds %d characters", maxDescriptionLen)
	}
	if n.IsRoot && n.ParentID != nil {
		return apperr.New(apperr.InvariantViolation, "root node %s cannot have a parent", n.ID)
	}
	if !n.IsRoot && n.ParentID == nil {
		return apperr.New(apperr.InvariantViolation, "non-root node %s requires a parent", n.ID)
	}
	if n.IsLeaf {
		if n.TotalCount == nil {
			return apperr.New(apperr.InvariantViolation, "leaf node %s requires total_count", n.ID)
		}
		if *n.TotalCount < 0 {
			return apperr.New(apperr.InvalidValue, "total_count must not be negative")
		}
		for _, seg := range n.SegmentScores {
			if seg.TargetCount < 0 {
				return apperr.New(apperr.InvalidValue, "segment target_count must not be negative")
			}
			if seg.TargetCount > *n.TotalCount {
				return apperr.New(apperr.InvariantViolation,
					"segment target_count %d exceeds total_count %d", seg.TargetCount, *n.TotalCount)
			}
			if seg.Score < 0 || seg.Score > 1 {
				return apperr.New(apperr.InvalidValue, "segment score must be within [0,1]")
			}
		}
		return nil
	}
	if n.TotalCount != nil {
		return apperr.New(apperr.InvariantViolation, "non-leaf node %s cannot carry total_count", n.ID)
	}
	if len(n.SegmentScores) > 0 {
		return apperr.New(apperr.InvariantViolation, "non-leaf node %s cannot carry segment_scores", n.ID)
	}
	return nil
}
