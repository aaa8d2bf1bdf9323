package tree

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
)

// Mutator owns the cross-node consistency the store primitives cannot see:
// sibling index assignment, leaf transitions, cascade deletes and reorders.
// Every multi-row mutation runs inside a single store transaction.
type Mutator struct {
	store Store
	now   func() time.Time
}

func NewMutator(store Store) *Mutator {
	return &Mutator{store: store, now: time.Now}
}

func (m *Mutator) CreateNode(ctx context.Context, in NodeInput) (Node, error) {
	n := Node{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Description:   in.Description,
		IsRoot:        in.IsRoot,
		IsLeaf:        in.IsLeaf,
		ParentID:      in.ParentID,
		TotalCount:    in.TotalCount,
		SegmentScores: in.SegmentScores,
		CreatedAt:     m.now().Unix(),
		UpdatedAt:     m.now().Unix(),
	}
	if err := Validate(n); err != nil {
		return Node{}, err
	}
	if in.Index != nil && *in.Index < 0 {
		return Node{}, apperr.New(apperr.InvalidValue, "index must not be negative")
	}
	err := m.store.WithTx(ctx, func(s Store) error {
		if in.ParentID != nil {
			parent, err := s.Get(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if parent.IsLeaf {
				return apperr.New(apperr.InvariantViolation, "parent node %s is a leaf", parent.ID)
			}
		}
		siblings, err := siblingsOf(ctx, s, in.ParentID)
		if err != nil {
			return err
		}
		if in.Index == nil {
			n.Index = nextIndex(siblings)
		} else {
			// shift everything at or after the requested slot up by one so
			// the explicit position stays meaningful
			n.Index = *in.Index
			for _, sib := range siblings {
				if sib.Index >= *in.Index {
					sib.Index++
					sib.UpdatedAt = m.now().Unix()
					if err := s.Put(ctx, sib); err != nil {
						return err
					}
				}
			}
		}
		return s.Put(ctx, n)
	})
	if err != nil {
		return Node{}, err
	}
	return n, nil
}

func (m *Mutator) UpdateNode(ctx context.Context, id string, patch NodePatch) (Node, error) {
	var out Node
	err := m.store.WithTx(ctx, func(s Store) error {
		n, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			n.Name = *patch.Name
		}
		if patch.Description != nil {
			n.Description = *patch.Description
		}
		if patch.IsLeaf != nil && *patch.IsLeaf != n.IsLeaf {
			if *patch.IsLeaf {
				children, err := s.FindChildren(ctx, n.ID)
				if err != nil {
					return err
				}
				if len(children) > 0 {
					return apperr.New(apperr.InvariantViolation,
						"node %s has children and cannot become a leaf", n.ID)
				}
				n.IsLeaf = true
				// totalCount must arrive with the transition; Validate below
				// rejects a leaf without one
			} else {
				n.IsLeaf = false
				n.TotalCount = nil
				n.SegmentScores = nil
			}
		}
		if n.IsLeaf {
			totalChanged := patch.TotalCount != nil &&
				(n.TotalCount == nil || *n.TotalCount != *patch.TotalCount)
			if patch.TotalCount != nil {
				n.TotalCount = patch.TotalCount
			}
			if totalChanged {
				// prior segment targets may exceed the new total
				n.SegmentScores = nil
			} else if patch.SegmentScores != nil {
				n.SegmentScores = *patch.SegmentScores
			}
		}
		n.UpdatedAt = m.now().Unix()
		if err := s.Put(ctx, n); err != nil {
			return err
		}
		out = n
		return nil
	})
	if err != nil {
		return Node{}, err
	}
	return out, nil
}

// DeleteNode removes a node. Without cascade it fails with HasChildren when
// the node still has children; with cascade it removes the whole subtree
// post-order inside one transaction.
func (m *Mutator) DeleteNode(ctx context.Context, id string, cascade bool) error {
	return m.store.WithTx(ctx, func(s Store) error {
		if !cascade {
			return s.Delete(ctx, id)
		}
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return deleteSubtree(ctx, s, id)
	})
}

func deleteSubtree(ctx context.Context, s Store, id string) error {
	children, err := s.FindChildren(ctx, id)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := deleteSubtree(ctx, s, c.ID); err != nil {
			return err
		}
	}
	return s.Delete(ctx, id)
}

// ReorderSiblings reassigns 0-based indices to the children of parentID (nil
// for the root level) following orderedIDs, which must be exactly the current
// sibling set. The reindex is atomic.
func (m *Mutator) ReorderSiblings(ctx context.Context, parentID *string, orderedIDs []string) ([]Node, error) {
	var out []Node
	err := m.store.WithTx(ctx, func(s Store) error {
		siblings, err := siblingsOf(ctx, s, parentID)
		if err != nil {
			return err
		}
		if len(orderedIDs) != len(siblings) {
			return apperr.New(apperr.InvalidSiblingSet,
				"expected %d sibling ids, got %d", len(siblings), len(orderedIDs))
		}
		byID := make(map[string]Node, len(siblings))
		for _, sib := range siblings {
			byID[sib.ID] = sib
		}
		seen := make(map[string]bool, len(orderedIDs))
		out = make([]Node, 0, len(orderedIDs))
		for pos, id := range orderedIDs {
			n, ok := byID[id]
			if !ok {
				return apperr.New(apperr.InvalidSiblingSet, "node %s is not a sibling under this parent", id)
			}
			if seen[id] {
				return apperr.New(apperr.InvalidSiblingSet, "node %s listed twice", id)
			}
			seen[id] = true
			n.Index = pos
			n.UpdatedAt = m.now().Unix()
			if err := s.Put(ctx, n); err != nil {
				return err
			}
			out = append(out, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func siblingsOf(ctx context.Context, s Store, parentID *string) ([]Node, error) {
	if parentID == nil {
		return s.FindRoots(ctx)
	}
	return s.FindChildren(ctx, *parentID)
}

func nextIndex(siblings []Node) int {
	next := 0
	for _, s := range siblings {
		if s.Index >= next {
			next = s.Index + 1
		}
	}
	return next
}
