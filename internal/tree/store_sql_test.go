package tree_test

import (
	"context"
	"testing"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
	"github.com/brightsteps/brightsteps-assess/internal/db"
	"github.com/brightsteps/brightsteps-assess/internal/tree"
)

func openSQLiteStore(t *testing.T, name string) *tree.SQLStore {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return tree.NewSQLStore(dbh, "sqlite")
}

func TestSQLStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openSQLiteStore(t, "tree_roundtrip")

	root := tree.Node{ID: "r1", Name: "Cognition", IsRoot: true, CreatedAt: 10, UpdatedAt: 10}
	if err := st.Put(ctx, root); err != nil {
		t.Fatal(err)
	}
	leaf := tree.Node{
		ID: "l1", Name: "Sorting", ParentID: strp("r1"), Index: 0,
		IsLeaf: true, TotalCount: intp(8),
		SegmentScores: []tree.SegmentScore{{TargetCount: 4, Score: 0.5}, {TargetCount: 8, Score: 1}},
		CreatedAt:     10, UpdatedAt: 10,
	}
	if err := st.Put(ctx, leaf); err != nil {
		t.Fatal(err)
	}

	got, err := st.Get(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ParentID == nil || *got.ParentID != "r1" {
		t.Fatalf("parent lost: %+v", got)
	}
	if got.TotalCount == nil || *got.TotalCount != 8 {
		t.Fatalf("total lost: %+v", got)
	}
	if len(got.SegmentScores) != 2 || got.SegmentScores[1].Score != 1 {
		t.Fatalf("segments lost: %+v", got.SegmentScores)
	}

	// upsert replaces in place
	got.Name = "Sorting shapes"
	if err := st.Put(ctx, got); err != nil {
		t.Fatal(err)
	}
	got2, err := st.Get(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	if got2.Name != "Sorting shapes" {
		t.Fatalf("update not applied: %+v", got2)
	}
}

func TestSQLStoreGetMissing(t *testing.T) {
	st := openSQLiteStore(t, "tree_missing")
	if _, err := st.Get(context.Background(), "nope"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestSQLStorePutOrphanRejected(t *testing.T) {
	st := openSQLiteStore(t, "tree_orphan")
	err := st.Put(context.Background(), tree.Node{
		ID: "x", Name: "X", ParentID: strp("ghost"), CreatedAt: 1, UpdatedAt: 1,
	})
	if apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not_found for missing parent, got %v", err)
	}
}

func TestSQLStoreChildOrdering(t *testing.T) {
	ctx := context.Background()
	st := openSQLiteStore(t, "tree_order")

	if err := st.Put(ctx, tree.Node{ID: "r", Name: "Tool", IsRoot: true, CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	// written out of order, same index ties broken by id
	for _, n := range []tree.Node{
		{ID: "c", Name: "C", ParentID: strp("r"), Index: 1},
		{ID: "b", Name: "B", ParentID: strp("r"), Index: 0},
		{ID: "a", Name: "A", ParentID: strp("r"), Index: 1},
	} {
		n.CreatedAt, n.UpdatedAt = 1, 1
		if err := st.Put(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	children, err := st.FindChildren(ctx, "r")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b", "a", "c"}
	for i, id := range want {
		if children[i].ID != id {
			t.Fatalf("position %d: want %s got %s (%+v)", i, id, children[i].ID, children)
		}
	}
}

func TestSQLStoreDeleteGuard(t *testing.T) {
	ctx := context.Background()
	st := openSQLiteStore(t, "tree_delete")

	if err := st.Put(ctx, tree.Node{ID: "r", Name: "Tool", IsRoot: true, CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	child := tree.Node{ID: "c", Name: "C", ParentID: strp("r"), CreatedAt: 1, UpdatedAt: 1}
	if err := st.Put(ctx, child); err != nil {
		t.Fatal(err)
	}

	if err := st.Delete(ctx, "r"); apperr.KindOf(err) != apperr.HasChildren {
		t.Fatalf("expected has_children, got %v", err)
	}
	if err := st.Delete(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, "r"); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, "r"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestSQLStoreWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	st := openSQLiteStore(t, "tree_tx")

	if err := st.Put(ctx, tree.Node{ID: "r", Name: "Tool", IsRoot: true, CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	boom := apperr.New(apperr.InvalidValue, "boom")
	err := st.WithTx(ctx, func(s tree.Store) error {
		if err := s.Put(ctx, tree.Node{ID: "c", Name: "C", ParentID: strp("r"), CreatedAt: 1, UpdatedAt: 1}); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := st.Get(ctx, "c"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("tx write should have rolled back, got %v", err)
	}
}
