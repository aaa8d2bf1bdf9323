package eval_test

import (
	"context"
	"testing"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
	"github.com/brightsteps/brightsteps-assess/internal/eval"
)

func seedRecord(t *testing.T) (eval.Store, *eval.Updater, eval.Record) {
	t.Helper()
	records := eval.NewMemoryStore()
	rec := eval.Record{
		ID:        "rec-1",
		StudentID: "stu-1",
		ToolID:    "tool",
		ToolName:  "Language Scale",
		Status:    eval.StatusInProgress,
		Scores: []eval.Score{
			{NodeID: "leaf-1", NodeName: "Follows directions", IsLeaf: true, TargetCount: 5},
			{NodeID: "leaf-2", NodeName: "Points to objects", IsLeaf: true, TargetCount: 3},
			{NodeID: "dom-a", NodeName: "Receptive", IsLeaf: false},
		},
	}
	if _, err := records.Create(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	return records, eval.NewUpdater(records), rec
}

func TestUpdateNodeCount(t *testing.T) {
	ctx := context.Background()
	records, u, rec := seedRecord(t)

	got, err := u.UpdateNodeCount(ctx, rec.ID, "leaf-1", 4)
	if err != nil {
		t.Fatal(err)
	}
	if got.Scores[0].CompletedCount != 4 {
		t.Fatalf("count not applied: %+v", got.Scores[0])
	}
	stored, _ := records.Get(ctx, rec.ID)
	if stored.Scores[0].CompletedCount != 4 {
		t.Fatalf("count not persisted: %+v", stored.Scores[0])
	}

	// count above the target is allowed; only negatives are rejected
	if _, err := u.UpdateNodeCount(ctx, rec.ID, "leaf-1", 9); err != nil {
		t.Fatalf("over-target count: %v", err)
	}
}

func TestUpdateNodeCountErrors(t *testing.T) {
	ctx := context.Background()
	_, u, rec := seedRecord(t)

	if _, err := u.UpdateNodeCount(ctx, rec.ID, "leaf-1", -1); apperr.KindOf(err) != apperr.InvalidValue {
		t.Fatalf("expected invalid_value, got %v", err)
	}
	if _, err := u.UpdateNodeCount(ctx, rec.ID, "ghost", 1); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not_found for unknown node, got %v", err)
	}
	if _, err := u.UpdateNodeCount(ctx, "ghost", "leaf-1", 1); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not_found for unknown record, got %v", err)
	}
	if _, err := u.UpdateNodeCount(ctx, rec.ID, "dom-a", 1); apperr.KindOf(err) != apperr.NotLeaf {
		t.Fatalf("expected not_leaf, got %v", err)
	}
}

func TestReplaceScoresAllOrNothing(t *testing.T) {
	ctx := context.Background()
	records, u, rec := seedRecord(t)

	// one bad entry poisons the whole batch
	_, err := u.ReplaceScores(ctx, rec.ID, []eval.Score{
		{NodeID: "leaf-1", CompletedCount: 2},
		{NodeID: "ghost", CompletedCount: 1},
	})
	if apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
	stored, _ := records.Get(ctx, rec.ID)
	if stored.Scores[0].CompletedCount != 0 {
		t.Fatalf("partial batch applied: %+v", stored.Scores[0])
	}

	_, err = u.ReplaceScores(ctx, rec.ID, []eval.Score{
		{NodeID: "leaf-1", CompletedCount: 2},
		{NodeID: "leaf-2", CompletedCount: -1},
	})
	if apperr.KindOf(err) != apperr.InvalidValue {
		t.Fatalf("expected invalid_value, got %v", err)
	}

	// a clean batch lands atomically and untouched entries keep their values
	got, err := u.ReplaceScores(ctx, rec.ID, []eval.Score{
		{NodeID: "leaf-1", CompletedCount: 5, Segments: []eval.SegmentProgress{{TargetCount: 3, CompletedCount: 3}}},
		{NodeID: "leaf-2", CompletedCount: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Scores[0].CompletedCount != 5 || len(got.Scores[0].Segments) != 1 {
		t.Fatalf("batch not applied: %+v", got.Scores[0])
	}
	if got.Scores[1].CompletedCount != 1 || got.Scores[2].CompletedCount != 0 {
		t.Fatalf("unexpected entries: %+v", got.Scores)
	}
}

func TestTransitionStatus(t *testing.T) {
	ctx := context.Background()
	_, u, rec := seedRecord(t)

	got, err := u.TransitionStatus(ctx, rec.ID, eval.StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != eval.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.EvaluatedAt == nil || *got.EvaluatedAt == 0 {
		t.Fatal("completion must stamp evaluated_at")
	}

	// re-asserting the current status is a no-op success
	again, err := u.TransitionStatus(ctx, rec.ID, eval.StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if *again.EvaluatedAt != *got.EvaluatedAt {
		t.Fatal("no-op transition must not restamp evaluated_at")
	}

	// completed -> in_progress is not allowed
	if _, err := u.TransitionStatus(ctx, rec.ID, eval.StatusInProgress); apperr.KindOf(err) != apperr.InvalidTransition {
		t.Fatalf("expected invalid_transition, got %v", err)
	}

	// archived is terminal
	if _, err := u.TransitionStatus(ctx, rec.ID, eval.StatusArchived); err != nil {
		t.Fatal(err)
	}
	if _, err := u.TransitionStatus(ctx, rec.ID, eval.StatusInProgress); apperr.KindOf(err) != apperr.InvalidTransition {
		t.Fatalf("expected invalid_transition out of archived, got %v", err)
	}
	if _, err := u.TransitionStatus(ctx, rec.ID, eval.StatusCompleted); apperr.KindOf(err) != apperr.InvalidTransition {
		t.Fatalf("expected invalid_transition out of archived, got %v", err)
	}
}

func TestTransitionStatusDirectArchive(t *testing.T) {
	ctx := context.Background()
	_, u, rec := seedRecord(t)

	got, err := u.TransitionStatus(ctx, rec.ID, eval.StatusArchived)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != eval.StatusArchived {
		t.Fatalf("expected archived, got %s", got.Status)
	}
	if got.EvaluatedAt != nil {
		t.Fatal("archiving an in-progress record must not stamp evaluated_at")
	}
}

// contendedStore injects a competing committed write immediately before each
// unit of work starts, standing in for a writer that wins the race.
type contendedStore struct {
	eval.Store
	compete func()
}

func (s *contendedStore) WithTx(ctx context.Context, fn func(eval.Store) error) error {
	if s.compete != nil {
		s.compete()
	}
	return s.Store.WithTx(ctx, fn)
}

func TestTransitionStatusObservesCompetingArchive(t *testing.T) {
	ctx := context.Background()
	records, _, rec := seedRecord(t)

	archive := func() {
		cur, err := records.Get(ctx, rec.ID)
		if err != nil {
			t.Fatal(err)
		}
		cur.Status = eval.StatusArchived
		if _, err := records.Update(ctx, cur); err != nil {
			t.Fatal(err)
		}
	}
	u := eval.NewUpdater(&contendedStore{Store: records, compete: archive})

	// the record is archived just before our unit of work begins; completing
	// it must fail, not resurrect the record
	if _, err := u.TransitionStatus(ctx, rec.ID, eval.StatusCompleted); apperr.KindOf(err) != apperr.InvalidTransition {
		t.Fatalf("expected invalid_transition against archived record, got %v", err)
	}
	stored, err := records.Get(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != eval.StatusArchived {
		t.Fatalf("archived must be terminal, record is now %q", stored.Status)
	}
}

func TestUpdateNodeCountKeepsCompetingWrite(t *testing.T) {
	ctx := context.Background()
	records, _, rec := seedRecord(t)

	scoreLeaf2 := func() {
		cur, err := records.Get(ctx, rec.ID)
		if err != nil {
			t.Fatal(err)
		}
		cur.Scores[1].CompletedCount = 7
		if _, err := records.Update(ctx, cur); err != nil {
			t.Fatal(err)
		}
	}
	u := eval.NewUpdater(&contendedStore{Store: records, compete: scoreLeaf2})

	// leaf-2 was scored by another writer just before our unit of work; the
	// rewrite of leaf-1 must carry that value, not the stale zero
	got, err := u.UpdateNodeCount(ctx, rec.ID, "leaf-1", 4)
	if err != nil {
		t.Fatal(err)
	}
	if got.Scores[0].CompletedCount != 4 || got.Scores[1].CompletedCount != 7 {
		t.Fatalf("competing write lost: %+v", got.Scores)
	}
	stored, _ := records.Get(ctx, rec.ID)
	if stored.Scores[1].CompletedCount != 7 {
		t.Fatalf("competing write lost on disk: %+v", stored.Scores)
	}
}

func TestTransitionStatusUnknown(t *testing.T) {
	_, u, rec := seedRecord(t)
	if _, err := u.TransitionStatus(context.Background(), rec.ID, "paused"); apperr.KindOf(err) != apperr.InvalidValue {
		t.Fatalf("expected invalid_value, got %v", err)
	}
}
