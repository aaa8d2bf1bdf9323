package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
)

// SQLStore persists students and groups. Member lists are stored as JSON
// arrays in TEXT columns; these are read-mostly and never queried by member.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) CreateStudent(ctx context.Context, st Student) (Student, error) {
	if err := validateStudent(st); err != nil {
		return Student{}, err
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	now := time.Now().Unix()
	st.CreatedAt, st.UpdatedAt = now, now
	tj, _ := json.Marshal(emptyIfNil(st.AssignedTeachers))
	gj, _ := json.Marshal(emptyIfNil(st.Groups))
	_, err := s.db.ExecContext(ctx, `INSERT INTO students (id,name,gender,birth_date,teachers_json,groups_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		st.ID, st.Name, st.Gender, st.BirthDate, string(tj), string(gj), st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return Student{}, err
	}
	return st, nil
}

func (s *SQLStore) GetStudent(ctx context.Context, id string) (Student, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,name,gender,birth_date,teachers_json,groups_json,created_at,updated_at
		FROM students WHERE id=$1`, id)
	st, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, apperr.New(apperr.NotFound, "student %s not found", id)
	}
	return st, err
}

func (s *SQLStore) ListStudents(ctx context.Context, q string) ([]Student, error) {
	var rows *sql.Rows
	var err error
	if q == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT id,name,gender,birth_date,teachers_json,groups_json,created_at,updated_at
			FROM students ORDER BY name, id`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT id,name,gender,birth_date,teachers_json,groups_json,created_at,updated_at
			FROM students WHERE name LIKE $1 ORDER BY name, id`, "%"+q+"%")
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateStudent(ctx context.Context, st Student) (Student, error) {
	if err := validateStudent(st); err != nil {
		return Student{}, err
	}
	st.UpdatedAt = time.Now().Unix()
	tj, _ := json.Marshal(emptyIfNil(st.AssignedTeachers))
	gj, _ := json.Marshal(emptyIfNil(st.Groups))
	res, err := s.db.ExecContext(ctx, `UPDATE students SET name=$1, gender=$2, birth_date=$3, teachers_json=$4, groups_json=$5, updated_at=$6
		WHERE id=$7`,
		st.Name, st.Gender, st.BirthDate, string(tj), string(gj), st.UpdatedAt, st.ID)
	if err != nil {
		return Student{}, err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return Student{}, apperr.New(apperr.NotFound, "student %s not found", st.ID)
	}
	return st, nil
}

func (s *SQLStore) DeleteStudent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apperr.New(apperr.NotFound, "student %s not found", id)
	}
	return nil
}

func (s *SQLStore) CreateGroup(ctx context.Context, g Group) (Group, error) {
	if err := validateGroup(g); err != nil {
		return Group{}, err
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().Unix()
	g.CreatedAt, g.UpdatedAt = now, now
	tj, _ := json.Marshal(emptyIfNil(g.Teachers))
	mj, _ := json.Marshal(emptyIfNil(g.Managers))
	sj, _ := json.Marshal(emptyIfNil(g.Students))
	_, err := s.db.ExecContext(ctx, `INSERT INTO groups (id,name,description,teachers_json,managers_json,students_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		g.ID, g.Name, g.Description, string(tj), string(mj), string(sj), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Group{}, apperr.New(apperr.InvalidValue, "group name %q already exists", g.Name)
		}
		return Group{}, err
	}
	return g, nil
}

func (s *SQLStore) GetGroup(ctx context.Context, id string) (Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,name,description,teachers_json,managers_json,students_json,created_at,updated_at
		FROM groups WHERE id=$1`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, apperr.New(apperr.NotFound, "group %s not found", id)
	}
	return g, err
}

func (s *SQLStore) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,description,teachers_json,managers_json,students_json,created_at,updated_at
		FROM groups ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateGroup(ctx context.Context, g Group) (Group, error) {
	if err := validateGroup(g); err != nil {
		return Group{}, err
	}
	g.UpdatedAt = time.Now().Unix()
	tj, _ := json.Marshal(emptyIfNil(g.Teachers))
	mj, _ := json.Marshal(emptyIfNil(g.Managers))
	sj, _ := json.Marshal(emptyIfNil(g.Students))
	res, err := s.db.ExecContext(ctx, `UPDATE groups SET name=$1, description=$2, teachers_json=$3, managers_json=$4, students_json=$5, updated_at=$6
		WHERE id=$7`,
		g.Name, g.Description, string(tj), string(mj), string(sj), g.UpdatedAt, g.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Group{}, apperr.New(apperr.InvalidValue, "group name %q already exists", g.Name)
		}
		return Group{}, err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return Group{}, apperr.New(apperr.NotFound, "group %s not found", g.ID)
	}
	return g, nil
}

func (s *SQLStore) DeleteGroup(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apperr.New(apperr.NotFound, "group %s not found", id)
	}
	return nil
}

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var st Student
	var tj, gj string
	if err := row.Scan(&st.ID, &st.Name, &st.Gender, &st.BirthDate, &tj, &gj, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return Student{}, err
	}
	if err := json.Unmarshal([]byte(tj), &st.AssignedTeachers); err != nil {
		return Student{}, err
	}
	if err := json.Unmarshal([]byte(gj), &st.Groups); err != nil {
		return Student{}, err
	}
	return st, nil
}

func scanGroup(row interface{ Scan(...any) error }) (Group, error) {
	var g Group
	var tj, mj, sj string
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &tj, &mj, &sj, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return Group{}, err
	}
	if err := json.Unmarshal([]byte(tj), &g.Teachers); err != nil {
		return Group{}, err
	}
	if err := json.Unmarshal([]byte(mj), &g.Managers); err != nil {
		return Group{}, err
	}
	if err := json.Unmarshal([]byte(sj), &g.Students); err != nil {
		return Group{}, err
	}
	return g, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
