package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightsteps/brightsteps-assess/internal/roster"
	syncx "github.com/brightsteps/brightsteps-assess/internal/sync"
)

func CreateStudentHandler(store *roster.SQLStore, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var st roster.Student
		if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		out, err := store.CreateStudent(r.Context(), st)
		if err != nil {
			writeError(w, err)
			return
		}
		auditLog(r, audit, "roster.student_created", out.ID, map[string]any{"name": out.Name})
		writeJSON(w, http.StatusCreated, out)
	}
}

func GetStudentHandler(store *roster.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := store.GetStudent(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func ListStudentsHandler(store *roster.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListStudents(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func UpdateStudentHandler(store *roster.SQLStore, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var st roster.Student
		if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		st.ID = chi.URLParam(r, "studentID")
		out, err := store.UpdateStudent(r.Context(), st)
		if err != nil {
			writeError(w, err)
			return
		}
		auditLog(r, audit, "roster.student_updated", out.ID, map[string]any{"name": out.Name})
		writeJSON(w, http.StatusOK, out)
	}
}

func DeleteStudentHandler(store *roster.SQLStore, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "studentID")
		if err := store.DeleteStudent(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		auditLog(r, audit, "roster.student_deleted", id, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

func CreateGroupHandler(store *roster.SQLStore, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var g roster.Group
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		out, err := store.CreateGroup(r.Context(), g)
		if err != nil {
			writeError(w, err)
			return
		}
		auditLog(r, audit, "roster.group_created", out.ID, map[string]any{"name": out.Name})
		writeJSON(w, http.StatusCreated, out)
	}
}

func GetGroupHandler(store *roster.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := store.GetGroup(r.Context(), chi.URLParam(r, "groupID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func ListGroupsHandler(store *roster.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListGroups(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func UpdateGroupHandler(store *roster.SQLStore, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var g roster.Group
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		g.ID = chi.URLParam(r, "groupID")
		out, err := store.UpdateGroup(r.Context(), g)
		if err != nil {
			writeError(w, err)
			return
		}
		auditLog(r, audit, "roster.group_updated", out.ID, map[string]any{"name": out.Name})
		writeJSON(w, http.StatusOK, out)
	}
}

func DeleteGroupHandler(store *roster.SQLStore, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "groupID")
		if err := store.DeleteGroup(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		auditLog(r, audit, "roster.group_deleted", id, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}
