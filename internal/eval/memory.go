package eval

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	inTx    bool
}

func NewMemoryStore() Store {
	return &memoryStore{records: map[string]Record{}}
}

func (m *memoryStore) Create(ctx context.Context, r Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.records {
		if ex.StudentID == r.StudentID && ex.ToolID == r.ToolID && ex.Status.Active() {
			return Record{}, apperr.New(apperr.DuplicateActiveRecord,
				"student %s already has an active record for tool %s", r.StudentID, r.ToolID)
		}
	}
	now := time.Now().Unix()
	if r.CreatedAt == 0 {
		r.CreatedAt = now
	}
	if r.UpdatedAt == 0 {
		r.UpdatedAt = now
	}
	m.records[r.ID] = cloneRecord(r)
	return r, nil
}

func (m *memoryStore) Get(ctx context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, apperr.New(apperr.NotFound, "evaluation record %s not found", id)
	}
	return cloneRecord(r), nil
}

func (m *memoryStore) FindByStudent(ctx context.Context, studentID string) ([]Record, error) {
	return m.List(ctx, ListOpts{StudentID: studentID})
}

func (m *memoryStore) FindByTool(ctx context.Context, toolID string) ([]Record, error) {
	return m.List(ctx, ListOpts{ToolID: toolID})
}

func (m *memoryStore) List(ctx context.Context, opts ListOpts) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Record{}
	for _, r := range m.records {
		if opts.StudentID != "" && r.StudentID != opts.StudentID {
			continue
		}
		if opts.ToolID != "" && r.ToolID != opts.ToolID {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Record{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) Update(ctx context.Context, r Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; !ok {
		return Record{}, apperr.New(apperr.NotFound, "evaluation record %s not found", r.ID)
	}
	for _, ex := range m.records {
		if ex.ID != r.ID && ex.StudentID == r.StudentID && ex.ToolID == r.ToolID &&
			ex.Status.Active() && r.Status.Active() {
			return Record{}, apperr.New(apperr.DuplicateActiveRecord,
				"student %s already has an active record for tool %s", r.StudentID, r.ToolID)
		}
	}
	r.UpdatedAt = time.Now().Unix()
	m.records[r.ID] = cloneRecord(r)
	return r, nil
}

func (m *memoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return apperr.New(apperr.NotFound, "evaluation record %s not found", id)
	}
	delete(m.records, id)
	return nil
}

// WithTx copies the record map, runs fn against the copy, and swaps it in only
// on success. The outer lock is held for the whole unit of work, so a
// read-modify-write inside fn cannot interleave with another writer.
func (m *memoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := &memoryStore{records: make(map[string]Record, len(m.records)), inTx: true}
	for id, r := range m.records {
		clone.records[id] = r
	}
	if err := fn(clone); err != nil {
		return err
	}
	m.records = clone.records
	return nil
}

// cloneRecord copies the score slice so callers cannot mutate stored state
// through a returned record.
func cloneRecord(r Record) Record {
	scores := make([]Score, len(r.Scores))
	copy(scores, r.Scores)
	for i := range scores {
		if len(scores[i].Segments) > 0 {
			segs := make([]SegmentProgress, len(scores[i].Segments))
			copy(segs, scores[i].Segments)
			scores[i].Segments = segs
		}
	}
	r.Scores = scores
	if r.EvaluatedAt != nil {
		t := *r.EvaluatedAt
		r.EvaluatedAt = &t
	}
	return r
}
