package eval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
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

const recordCols = `id,student_id,tool_id,tool_name,scores_json,status,evaluated_at,created_at,updated_at`

// Create inserts the record. The partial unique index on
// (student_id, tool_id) over active statuses turns a lost check-then-act race
// into a constraint violation, which is reported as DuplicateActiveRecord.
func (s *SQLStore) Create(ctx context.Context, r Record) (Record, error) {
	sj, err := json.Marshal(r.Scores)
	if err != nil {
		return Record{}, err
	}
	now := time.Now().Unix()
	if r.CreatedAt == 0 {
		r.CreatedAt = now
	}
	if r.UpdatedAt == 0 {
		r.UpdatedAt = now
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO evaluation_records (`+recordCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.ID, r.StudentID, r.ToolID, r.ToolName, string(sj), string(r.Status),
		nullableTime(r.EvaluatedAt), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Record{}, apperr.New(apperr.DuplicateActiveRecord,
				"student %s already has an active record for tool %s", r.StudentID, r.ToolID)
		}
		return Record{}, err
	}
	return r, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+recordCols+` FROM evaluation_records WHERE id=$1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, apperr.New(apperr.NotFound, "evaluation record %s not found", id)
	}
	return r, err
}

func (s *SQLStore) FindByStudent(ctx context.Context, studentID string) ([]Record, error) {
	return s.List(ctx, ListOpts{StudentID: studentID})
}

func (s *SQLStore) FindByTool(ctx context.Context, toolID string) ([]Record, error) {
	return s.List(ctx, ListOpts{ToolID: toolID})
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Record, error) {
	where := []string{}
	args := []any{}
	ph := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if opts.StudentID != "" {
		where = append(where, "student_id="+ph(opts.StudentID))
	}
	if opts.ToolID != "" {
		where = append(where, "tool_id="+ph(opts.ToolID))
	}
	if opts.Status != "" {
		where = append(where, "status="+ph(string(opts.Status)))
	}
	q := `SELECT ` + recordCols + ` FROM evaluation_records`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		q += " LIMIT " + ph(opts.Limit)
	}
	if opts.Offset > 0 {
		q += " OFFSET " + ph(opts.Offset)
	}
	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Update(ctx context.Context, r Record) (Record, error) {
	sj, err := json.Marshal(r.Scores)
	if err != nil {
		return Record{}, err
	}
	r.UpdatedAt = time.Now().Unix()
	res, err := s.q.ExecContext(ctx, `UPDATE evaluation_records
		SET scores_json=$1, status=$2, evaluated_at=$3, updated_at=$4 WHERE id=$5`,
		string(sj), string(r.Status), nullableTime(r.EvaluatedAt), r.UpdatedAt, r.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Record{}, apperr.New(apperr.DuplicateActiveRecord,
				"student %s already has an active record for tool %s", r.StudentID, r.ToolID)
		}
		return Record{}, err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return Record{}, apperr.New(apperr.NotFound, "evaluation record %s not found", r.ID)
	}
	return r, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM evaluation_records WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apperr.New(apperr.NotFound, "evaluation record %s not found", id)
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var sj, status string
	var evaluated sql.NullInt64
	if err := row.Scan(&r.ID, &r.StudentID, &r.ToolID, &r.ToolName, &sj, &status,
		&evaluated, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Record{}, err
	}
	r.Status = Status(status)
	if evaluated.Valid {
		t := evaluated.Int64
		r.EvaluatedAt = &t
	}
	if err := json.Unmarshal([]byte(sj), &r.Scores); err != nil {
		return Record{}, err
	}
	return r, nil
}

func nullableTime(t *int64) any {
	if t == nil {
		return nil
	}
	return *t
}

func placeholder(n int) string {
	// $N works for both pgx and modernc/sqlite
	return "$" + strconv.Itoa(n)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}
