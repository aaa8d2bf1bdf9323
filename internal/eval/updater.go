package eval

import (
	"context"
	"time"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
)

// Updater applies scoped mutations to existing records: single-leaf count
// updates, bulk score replacement, and status transitions. The entry set of a
// record never changes here, only counts and lifecycle fields. Each operation
// reads and rewrites the record inside one store unit of work, so a competing
// writer cannot slip between the read and the commit.
type Updater struct {
	records Store
	now     func() time.Time
}

func NewUpdater(records Store) *Updater {
	return &Updater{records: records, now: time.Now}
}

func (u *Updater) UpdateNodeCount(ctx context.Context, recordID, nodeID string, completedCount int) (Record, error) {
	if completedCount < 0 {
		return Record{}, apperr.New(apperr.InvalidValue, "completed_count must not be negative")
	}
	var out Record
	err := u.records.WithTx(ctx, func(s Store) error {
		rec, err := s.Get(ctx, recordID)
		if err != nil {
			return err
		}
		idx := -1
		for i := range rec.Scores {
			if rec.Scores[i].NodeID == nodeID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperr.New(apperr.NotFound, "node %s is not part of record %s", nodeID, recordID)
		}
		if !rec.Scores[idx].IsLeaf {
			return apperr.New(apperr.NotLeaf, "node %s is not a scorable leaf entry", nodeID)
		}
		rec.Scores[idx].CompletedCount = completedCount
		out, err = s.Update(ctx, rec)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return out, nil
}

// ReplaceScores applies a bulk count update. Every incoming entry must match
// an existing entry by node id; everything is validated before any entry is
// touched, so a bad batch changes nothing.
func (u *Updater) ReplaceScores(ctx context.Context, recordID string, scores []Score) (Record, error) {
	var out Record
	err := u.records.WithTx(ctx, func(s Store) error {
		rec, err := s.Get(ctx, recordID)
		if err != nil {
			return err
		}
		byNode := make(map[string]int, len(rec.Scores))
		for i := range rec.Scores {
			byNode[rec.Scores[i].NodeID] = i
		}
		for _, in := range scores {
			if _, ok := byNode[in.NodeID]; !ok {
				return apperr.New(apperr.NotFound, "node %s is not part of record %s", in.NodeID, recordID)
			}
			if in.CompletedCount < 0 {
				return apperr.New(apperr.InvalidValue,
					"completed_count for node %s must not be negative", in.NodeID)
			}
			for _, seg := range in.Segments {
				if seg.CompletedCount < 0 {
					return apperr.New(apperr.InvalidValue,
						"segment completed_count for node %s must not be negative", in.NodeID)
				}
			}
		}
		for _, in := range scores {
			i := byNode[in.NodeID]
			rec.Scores[i].CompletedCount = in.CompletedCount
			if in.Segments != nil {
				rec.Scores[i].Segments = in.Segments
			}
		}
		out, err = s.Update(ctx, rec)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return out, nil
}

// TransitionStatus moves a record through its lifecycle. Re-asserting the
// current status is a no-op success; leaving archived is never allowed.
func (u *Updater) TransitionStatus(ctx context.Context, recordID string, next Status) (Record, error) {
	if !next.Valid() {
		return Record{}, apperr.New(apperr.InvalidValue, "unknown status %q", next)
	}
	var out Record
	err := u.records.WithTx(ctx, func(s Store) error {
		rec, err := s.Get(ctx, recordID)
		if err != nil {
			return err
		}
		if rec.Status == next {
			out = rec
			return nil
		}
		switch {
		case rec.Status == StatusInProgress && next == StatusCompleted:
			t := u.now().Unix()
			rec.EvaluatedAt = &t
		case rec.Status == StatusInProgress && next == StatusArchived:
		case rec.Status == StatusCompleted && next == StatusArchived:
		default:
			return apperr.New(apperr.InvalidTransition,
				"cannot transition record %s from %s to %s", recordID, rec.Status, next)
		}
		rec.Status = next
		out, err = s.Update(ctx, rec)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return out, nil
}
