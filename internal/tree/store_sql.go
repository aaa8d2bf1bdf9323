package tree

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
)

// queryer is the subset of *sql.DB / *sql.Tx the store needs.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLStore struct {
	db     *sql.DB // nil when this store is a transaction view
	q      queryer
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, q: db, driver: driver}
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		// already inside a transaction
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&SQLStore{q: tx, driver: s.driver}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Get(ctx context.Context, id string) (Node, error) {
	row := s.q.QueryRowContext(ctx, `SELECT id,name,description,is_root,is_leaf,parent_id,idx,total_count,segment_scores_json,created_at,updated_at
		FROM tree_nodes WHERE id=$1`, id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Node{}, apperr.New(apperr.NotFound, "node %s not found", id)
	}
	return n, err
}

func (s *SQLStore) Put(ctx context.Context, n Node) error {
	if err := Validate(n); err != nil {
		return err
	}
	if n.ParentID != nil {
		var parentLeaf bool
		err := s.q.QueryRowContext(ctx, `SELECT is_leaf FROM tree_nodes WHERE id=$1`, *n.ParentID).Scan(&parentLeaf)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.NotFound, "parent node %s not found", *n.ParentID)
		}
		if err != nil {
			return err
		}
		if parentLeaf {
			return apperr.New(apperr.InvariantViolation, "parent node %s is a leaf", *n.ParentID)
		}
	}
	segJSON, err := json.Marshal(n.SegmentScores)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	if n.CreatedAt == 0 {
		n.CreatedAt = now
	}
	if n.UpdatedAt == 0 {
		n.UpdatedAt = now
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO tree_nodes (id,name,description,is_root,is_leaf,parent_id,idx,total_count,segment_scores_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
		  name=EXCLUDED.name, description=EXCLUDED.description,
		  is_root=EXCLUDED.is_root, is_leaf=EXCLUDED.is_leaf,
		  parent_id=EXCLUDED.parent_id, idx=EXCLUDED.idx,
		  total_count=EXCLUDED.total_count, segment_scores_json=EXCLUDED.segment_scores_json,
		  updated_at=EXCLUDED.updated_at`,
		n.ID, n.Name, n.Description, n.IsRoot, n.IsLeaf, nullableStr(n.ParentID), n.Index,
		nullableInt(n.TotalCount), string(segJSON), n.CreatedAt, n.UpdatedAt)
	return err
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	var one int
	err := s.q.QueryRowContext(ctx, `SELECT 1 FROM tree_nodes WHERE parent_id=$1 LIMIT 1`, id).Scan(&one)
	if err == nil {
		return apperr.New(apperr.HasChildren, "node %s still has children", id)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM tree_nodes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apperr.New(apperr.NotFound, "node %s not found", id)
	}
	return nil
}

func (s *SQLStore) FindChildren(ctx context.Context, parentID string) ([]Node, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id,name,description,is_root,is_leaf,parent_id,idx,total_count,segment_scores_json,created_at,updated_at
		FROM tree_nodes WHERE parent_id=$1 ORDER BY idx ASC, id ASC`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

func (s *SQLStore) FindRoots(ctx context.Context) ([]Node, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id,name,description,is_root,is_leaf,parent_id,idx,total_count,segment_scores_json,created_at,updated_at
		FROM tree_nodes WHERE is_root=$1 ORDER BY idx ASC, id ASC`, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

type rowScanner interface{ Scan(dest ...any) error }

func scanNode(row rowScanner) (Node, error) {
	var n Node
	var parent sql.NullString
	var total sql.NullInt64
	var segJSON string
	if err := row.Scan(&n.ID, &n.Name, &n.Description, &n.IsRoot, &n.IsLeaf,
		&parent, &n.Index, &total, &segJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return Node{}, err
	}
	if parent.Valid {
		p := parent.String
		n.ParentID = &p
	}
	if total.Valid {
		t := int(total.Int64)
		n.TotalCount = &t
	}
	if err := json.Unmarshal([]byte(segJSON), &n.SegmentScores); err != nil {
		return Node{}, err
	}
	return n, nil
}

func collectNodes(rows *sql.Rows) ([]Node, error) {
	out := []Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func nullableStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
