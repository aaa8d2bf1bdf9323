package tree

import "context"

// Assembler composes persisted nodes into explicit parent-owned child arrays
// at read time. It never mutates; children are always in (index, id) order, so
// two assemblies of the same persisted state are identical.
type Assembler struct {
	store Store
}

func NewAssembler(store Store) *Assembler { return &Assembler{store: store} }

// AssembleSubtree returns the full subtree rooted at rootID, depth-first.
func (a *Assembler) AssembleSubtree(ctx context.Context, rootID string) (Subtree, error) {
	n, err := a.store.Get(ctx, rootID)
	if err != nil {
		return Subtree{}, err
	}
	return a.build(ctx, n)
}

// AssembleForest returns one assembled subtree per root node.
func (a *Assembler) AssembleForest(ctx context.Context) ([]Subtree, error) {
	roots, err := a.store.FindRoots(ctx)
	if err != nil {
		return nil, err
	}
	forest := make([]Subtree, 0, len(roots))
	for _, r := range roots {
		st, err := a.build(ctx, r)
		if err != nil {
			return nil, err
		}
		forest = append(forest, st)
	}
	return forest, nil
}

func (a *Assembler) build(ctx context.Context, n Node) (Subtree, error) {
	children, err := a.store.FindChildren(ctx, n.ID)
	if err != nil {
		return Subtree{}, err
	}
	st := Subtree{Node: n, Children: make([]Subtree, 0, len(children))}
	for _, c := range children {
		cs, err := a.build(ctx, c)
		if err != nil {
			return Subtree{}, err
		}
		st.Children = append(st.Children, cs)
	}
	return st, nil
}

// CollectLeaves flattens a subtree into its leaf nodes in pre-order (parents
// before children, children in sibling order). The evaluation builder relies
// on this ordering being stable for a given persisted tree state.
func CollectLeaves(st Subtree) []Node {
	var leaves []Node
	var walk func(Subtree)
	walk = func(s Subtree) {
		if s.IsLeaf {
			leaves = append(leaves, s.Node)
		}
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(st)
	return leaves
}
