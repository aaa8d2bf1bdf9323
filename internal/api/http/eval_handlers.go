package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brightsteps/brightsteps-assess/internal/eval"
	"github.com/brightsteps/brightsteps-assess/internal/roster"
	syncx "github.com/brightsteps/brightsteps-assess/internal/sync"
)

func CreateEvaluationHandler(builder *eval.Builder, students *roster.SQLStore, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID string `json:"student_id"`
			ToolID    string `json:"tool_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if students != nil {
			if _, err := students.GetStudent(r.Context(), req.StudentID); err != nil {
				writeError(w, err)
				return
			}
		}
		rec, err := builder.BuildFromTree(r.Context(), req.StudentID, req.ToolID)
		if err != nil {
			writeError(w, err)
			return
		}
		auditLog(r, audit, "eval.record_created", rec.ID,
			map[string]any{"student_id": rec.StudentID, "tool_id": rec.ToolID})
		writeJSON(w, http.StatusCreated, rec)
	}
}

func ListEvaluationsHandler(store eval.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := eval.ListOpts{
			StudentID: strings.TrimSpace(r.URL.Query().Get("student_id")),
			ToolID:    strings.TrimSpace(r.URL.Query().Get("tool_id")),
			Status:    eval.Status(r.URL.Query().Get("status")),
			Limit:     parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:    parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		if opts.Status != "" && !opts.Status.Valid() {
			http.Error(w, "unknown status", 400)
			return
		}
		list, err := store.List(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetEvaluationHandler(store eval.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.Get(r.Context(), chi.URLParam(r, "recordID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func EvaluationsByStudentHandler(store eval.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.FindByStudent(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func EvaluationsByToolHandler(store eval.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.FindByTool(r.Context(), chi.URLParam(r, "toolID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func UpdateNodeScoreHandler(updater *eval.Updater, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID := chi.URLParam(r, "recordID")
		nodeID := chi.URLParam(r, "nodeID")
		var req struct {
			CompletedCount int `json:"completed_count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		rec, err := updater.UpdateNodeCount(r.Context(), recordID, nodeID, req.CompletedCount)
		if err != nil {
			writeError(w, err)
			return
		}
		auditLog(r, audit, "eval.node_scored", recordID,
			map[string]any{"node_id": nodeID, "completed_count": req.CompletedCount})
		writeJSON(w, http.StatusOK, rec)
	}
}

func ReplaceScoresHandler(updater *eval.Updater, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID := chi.URLParam(r, "recordID")
		var req struct {
			Scores []eval.Score `json:"evaluation_scores"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		rec, err := updater.ReplaceScores(r.Context(), recordID, req.Scores)
		if err != nil {
			writeError(w, err)
			return
		}
		auditLog(r, audit, "eval.scores_replaced", recordID, map[string]any{"entries": len(req.Scores)})
		writeJSON(w, http.StatusOK, rec)
	}
}

func TransitionStatusHandler(updater *eval.Updater, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID := chi.URLParam(r, "recordID")
		var req struct {
			Status eval.Status `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		rec, err := updater.TransitionStatus(r.Context(), recordID, req.Status)
		if err != nil {
			writeError(w, err)
			return
		}
		auditLog(r, audit, "eval.status_changed", recordID, map[string]any{"status": rec.Status})
		writeJSON(w, http.StatusOK, rec)
	}
}

func DeleteEvaluationHandler(store eval.Store, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID := chi.URLParam(r, "recordID")
		if err := store.Delete(r.Context(), recordID); err != nil {
			writeError(w, err)
			return
		}
		auditLog(r, audit, "eval.record_deleted", recordID, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
