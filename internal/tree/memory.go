package tree

import (
	"context"
	"sort"
	"sync"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
)

// memoryStore keeps the whole tree in a map. Used by unit tests and by the
// gateway when no database is configured.
type memoryStore struct {
	mu    sync.RWMutex
	nodes map[string]Node
	inTx  bool
}

func NewMemoryStore() Store {
	return &memoryStore{nodes: map[string]Node{}}
}

func (m *memoryStore) Get(ctx context.Context, id string) (Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return Node{}, apperr.New(apperr.NotFound, "node %s not found", id)
	}
	return cloneNode(n), nil
}

func (m *memoryStore) Put(ctx context.Context, n Node) error {
	if err := Validate(n); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ParentID != nil {
		parent, ok := m.nodes[*n.ParentID]
		if !ok {
			return apperr.New(apperr.NotFound, "parent node %s not found", *n.ParentID)
		}
		if parent.IsLeaf {
			return apperr.New(apperr.InvariantViolation, "parent node %s is a leaf", *n.ParentID)
		}
	}
	m.nodes[n.ID] = cloneNode(n)
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		return apperr.New(apperr.NotFound, "node %s not found", id)
	}
	for _, n := range m.nodes {
		if n.ParentID != nil && *n.ParentID == id {
			return apperr.New(apperr.HasChildren, "node %s still has children", id)
		}
	}
	delete(m.nodes, id)
	return nil
}

func (m *memoryStore) FindChildren(ctx context.Context, parentID string) ([]Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Node{}
	for _, n := range m.nodes {
		if n.ParentID != nil && *n.ParentID == parentID {
			out = append(out, cloneNode(n))
		}
	}
	sortSiblings(out)
	return out, nil
}

func (m *memoryStore) FindRoots(ctx context.Context) ([]Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Node{}
	for _, n := range m.nodes {
		if n.IsRoot {
			out = append(out, cloneNode(n))
		}
	}
	sortSiblings(out)
	return out, nil
}

// WithTx copies the node map, runs fn against the copy, and swaps it in only
// on success. Failed multi-row mutations therefore leave no trace.
func (m *memoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := &memoryStore{nodes: make(map[string]Node, len(m.nodes)), inTx: true}
	for id, n := range m.nodes {
		clone.nodes[id] = n
	}
	if err := fn(clone); err != nil {
		return err
	}
	m.nodes = clone.nodes
	return nil
}

// cloneNode detaches the segment slice so a caller mutating a returned node
// cannot write through to stored state.
func cloneNode(n Node) Node {
	if len(n.SegmentScores) > 0 {
		segs := make([]SegmentScore, len(n.SegmentScores))
		copy(segs, n.SegmentScores)
		n.SegmentScores = segs
	}
	return n
}

// sortSiblings orders by (index asc, id asc); ids break index ties so reads
// stay deterministic even mid-reindex.
func sortSiblings(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Index != nodes[j].Index {
			return nodes[i].Index < nodes[j].Index
		}
		return nodes[i].ID < nodes[j].ID
	})
}
