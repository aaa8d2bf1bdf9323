package roster

import (
	"strings"
	"time"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
)

// Student is an evaluated child, not a platform login.
type Student struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Gender           string   `json:"gender"` // "male" | "female"
	BirthDate        string   `json:"birth_date"` // ISO date, YYYY-MM-DD
	AssignedTeachers []string `json:"assigned_teachers"`
	Groups           []string `json:"groups"`
	CreatedAt        int64    `json:"created_at,omitempty"`
	UpdatedAt        int64    `json:"updated_at,omitempty"`
}

// Group is a named set of students with assigned teachers; managers must be a
// subset of the group's teachers.
type Group struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Teachers    []string `json:"teachers"`
	Managers    []string `json:"managers"`
	Students    []string `json:"students"`
	CreatedAt   int64    `json:"created_at,omitempty"`
	UpdatedAt   int64    `json:"updated_at,omitempty"`
}

func validateStudent(s Student) error {
	name := strings.TrimSpace(s.Name)
	if len(name) < 2 || len(name) > 50 {
		return apperr.New(apperr.InvalidValue, "student name must be 2-50 characters")
	}
	if s.Gender != "male" && s.Gender != "female" {
		return apperr.New(apperr.InvalidValue, "gender must be male or female")
	}
	if _, err := time.Parse("2006-01-02", s.BirthDate); err != nil {
		return apperr.New(apperr.InvalidValue, "birth_date must be YYYY-MM-DD")
	}
	return nil
}

func validateGroup(g Group) error {
	name := strings.TrimSpace(g.Name)
	if len(name) < 2 || len(name) > 100 {
		return apperr.New(apperr.InvalidValue, "group name must be 2-100 characters")
	}
	if len(g.Description) > 500 {
		return apperr.New(apperr.InvalidValue, "description exceeds 500 characters")
	}
	teachers := map[string]bool{}
	for _, t := range g.Teachers {
		teachers[t] = true
	}
	for _, m := range g.Managers {
		if !teachers[m] {
			return apperr.New(apperr.InvalidValue, "manager %s is not a teacher of this group", m)
		}
	}
	return nil
}
