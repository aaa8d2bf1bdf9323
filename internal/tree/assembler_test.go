package tree_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/brightsteps/brightsteps-assess/internal/tree"
)

// seedTool builds a small two-level tool:
//
//	root
//	  domain-a (idx 0)
//	    leaf-a1 (idx 0)  leaf-a2 (idx 1)
//	  domain-b (idx 1)
//	    leaf-b1 (idx 0)
func seedTool(t *testing.T, st tree.Store) (rootID string) {
	t.Helper()
	ctx := context.Background()
	put := func(n tree.Node) {
		n.CreatedAt, n.UpdatedAt = 1, 1
		if err := st.Put(ctx, n); err != nil {
			t.Fatalf("put %s: %v", n.ID, err)
		}
	}
	root := tree.Node{ID: "root", Name: "Fine Motor", IsRoot: true}
	put(root)
	put(tree.Node{ID: "domain-a", Name: "Grasping", ParentID: strp("root"), Index: 0})
	put(tree.Node{ID: "domain-b", Name: "Drawing", ParentID: strp("root"), Index: 1})
	put(tree.Node{ID: "leaf-a1", Name: "Pincer", ParentID: strp("domain-a"), Index: 0, IsLeaf: true, TotalCount: intp(4)})
	put(tree.Node{ID: "leaf-a2", Name: "Palmar", ParentID: strp("domain-a"), Index: 1, IsLeaf: true, TotalCount: intp(6)})
	put(tree.Node{ID: "leaf-b1", Name: "Circle", ParentID: strp("domain-b"), Index: 0, IsLeaf: true, TotalCount: intp(2)})
	return "root"
}

func strp(v string) *string { return &v }

func TestAssembleSubtreeOrdering(t *testing.T) {
	ctx := context.Background()
	st := tree.NewMemoryStore()
	rootID := seedTool(t, st)
	asm := tree.NewAssembler(st)

	got, err := asm.AssembleSubtree(ctx, rootID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Children) != 2 || got.Children[0].ID != "domain-a" || got.Children[1].ID != "domain-b" {
		t.Fatalf("children out of order: %+v", got.Children)
	}
	a := got.Children[0]
	if len(a.Children) != 2 || a.Children[0].ID != "leaf-a1" || a.Children[1].ID != "leaf-a2" {
		t.Fatalf("grandchildren out of order: %+v", a.Children)
	}

	// assembling twice from the same state yields the identical composition
	again, err := asm.AssembleSubtree(ctx, rootID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, again) {
		t.Fatal("assembly is not deterministic")
	}
}

func TestAssembleSubtreeIndexTiesBreakByID(t *testing.T) {
	ctx := context.Background()
	st := tree.NewMemoryStore()
	put := func(n tree.Node) {
		n.CreatedAt, n.UpdatedAt = 1, 1
		if err := st.Put(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	put(tree.Node{ID: "r", Name: "Tool", IsRoot: true})
	put(tree.Node{ID: "b", Name: "B", ParentID: strp("r"), Index: 3})
	put(tree.Node{ID: "a", Name: "A", ParentID: strp("r"), Index: 3})

	got, err := tree.NewAssembler(st).AssembleSubtree(ctx, "r")
	if err != nil {
		t.Fatal(err)
	}
	if got.Children[0].ID != "a" || got.Children[1].ID != "b" {
		t.Fatalf("tie should break by id: %+v", got.Children)
	}
}

func TestAssembleForest(t *testing.T) {
	ctx := context.Background()
	st := tree.NewMemoryStore()
	put := func(n tree.Node) {
		n.CreatedAt, n.UpdatedAt = 1, 1
		if err := st.Put(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	put(tree.Node{ID: "t2", Name: "Second", IsRoot: true, Index: 1})
	put(tree.Node{ID: "t1", Name: "First", IsRoot: true, Index: 0})

	forest, err := tree.NewAssembler(st).AssembleForest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(forest) != 2 || forest[0].ID != "t1" || forest[1].ID != "t2" {
		t.Fatalf("unexpected forest: %+v", forest)
	}
}

func TestCollectLeavesPreOrder(t *testing.T) {
	ctx := context.Background()
	st := tree.NewMemoryStore()
	rootID := seedTool(t, st)

	subtree, err := tree.NewAssembler(st).AssembleSubtree(ctx, rootID)
	if err != nil {
		t.Fatal(err)
	}
	leaves := tree.CollectLeaves(subtree)
	want := []string{"leaf-a1", "leaf-a2", "leaf-b1"}
	if len(leaves) != len(want) {
		t.Fatalf("expected %d leaves, got %d", len(want), len(leaves))
	}
	for i, id := range want {
		if leaves[i].ID != id {
			t.Fatalf("leaf %d: want %s got %s", i, id, leaves[i].ID)
		}
	}
}
