package eval_test

import (
	"context"
	"testing"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
	"github.com/brightsteps/brightsteps-assess/internal/db"
	"github.com/brightsteps/brightsteps-assess/internal/eval"
)

func openSQLiteRecords(t *testing.T, name string) *eval.SQLStore {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return eval.NewSQLStore(dbh, "sqlite")
}

func sampleRecord(id, student, tool string) eval.Record {
	return eval.Record{
		ID:        id,
		StudentID: student,
		ToolID:    tool,
		ToolName:  "Tool " + tool,
		Status:    eval.StatusInProgress,
		Scores: []eval.Score{
			{NodeID: "leaf-1", NodeName: "One", IsLeaf: true, TargetCount: 5},
		},
	}
}

func TestSQLRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openSQLiteRecords(t, "eval_roundtrip")

	if _, err := st.Create(ctx, sampleRecord("r1", "stu-1", "tool-1")); err != nil {
		t.Fatal(err)
	}
	got, err := st.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.StudentID != "stu-1" || len(got.Scores) != 1 || got.Scores[0].TargetCount != 5 {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if got.EvaluatedAt != nil {
		t.Fatalf("evaluated_at should start unset: %+v", got)
	}

	got.Scores[0].CompletedCount = 3
	got.Status = eval.StatusCompleted
	ts := int64(1234)
	got.EvaluatedAt = &ts
	if _, err := st.Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	got2, err := st.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got2.Scores[0].CompletedCount != 3 || got2.Status != eval.StatusCompleted {
		t.Fatalf("update lost: %+v", got2)
	}
	if got2.EvaluatedAt == nil || *got2.EvaluatedAt != 1234 {
		t.Fatalf("evaluated_at lost: %+v", got2.EvaluatedAt)
	}
}

func TestSQLRecordsDuplicateActiveIndex(t *testing.T) {
	ctx := context.Background()
	st := openSQLiteRecords(t, "eval_dup")

	if _, err := st.Create(ctx, sampleRecord("r1", "stu-1", "tool-1")); err != nil {
		t.Fatal(err)
	}
	// second active record for the same pair trips the partial unique index
	_, err := st.Create(ctx, sampleRecord("r2", "stu-1", "tool-1"))
	if apperr.KindOf(err) != apperr.DuplicateActiveRecord {
		t.Fatalf("expected duplicate_active_record, got %v", err)
	}

	// archived rows do not occupy the pair
	arch := sampleRecord("r3", "stu-2", "tool-1")
	arch.Status = eval.StatusArchived
	if _, err := st.Create(ctx, arch); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Create(ctx, sampleRecord("r4", "stu-2", "tool-1")); err != nil {
		t.Fatalf("archived record should not block: %v", err)
	}

	// archiving the live record frees the pair for a new one
	r1, err := st.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	r1.Status = eval.StatusArchived
	if _, err := st.Update(ctx, r1); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Create(ctx, sampleRecord("r5", "stu-1", "tool-1")); err != nil {
		t.Fatalf("after archive: %v", err)
	}
}

func TestSQLRecordsListFilters(t *testing.T) {
	ctx := context.Background()
	st := openSQLiteRecords(t, "eval_list")

	seed := []eval.Record{
		sampleRecord("r1", "stu-1", "tool-1"),
		sampleRecord("r2", "stu-1", "tool-2"),
		sampleRecord("r3", "stu-2", "tool-1"),
	}
	seed[2].Status = eval.StatusArchived
	for i, r := range seed {
		r.CreatedAt = int64(100 + i)
		r.UpdatedAt = r.CreatedAt
		if _, err := st.Create(ctx, r); err != nil {
			t.Fatalf("seed %s: %v", r.ID, err)
		}
	}

	byStudent, err := st.FindByStudent(ctx, "stu-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byStudent) != 2 || byStudent[0].ID != "r2" || byStudent[1].ID != "r1" {
		t.Fatalf("student filter/order wrong: %+v", byStudent)
	}

	byTool, err := st.FindByTool(ctx, "tool-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byTool) != 2 {
		t.Fatalf("tool filter wrong: %+v", byTool)
	}

	archived, err := st.List(ctx, eval.ListOpts{Status: eval.StatusArchived})
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 1 || archived[0].ID != "r3" {
		t.Fatalf("status filter wrong: %+v", archived)
	}

	page, err := st.List(ctx, eval.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "r2" {
		t.Fatalf("pagination wrong: %+v", page)
	}
}

func TestSQLRecordsDeleteAndMissing(t *testing.T) {
	ctx := context.Background()
	st := openSQLiteRecords(t, "eval_delete")

	if _, err := st.Create(ctx, sampleRecord("r1", "stu-1", "tool-1")); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, "r1"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
	if _, err := st.Get(ctx, "r1"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
	if _, err := st.Update(ctx, sampleRecord("ghost", "s", "t")); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}
