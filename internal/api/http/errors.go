package http

import (
	"encoding/json"
	"net/http"

	"github.com/brightsteps/brightsteps-assess/internal/apperr"
)

// writeError renders a typed failure as {"code":..,"message":..} with a
// status derived from the error kind. Unknown errors are reported as a
// generic 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	code := string(kind)
	msg := err.Error()
	status := http.StatusInternalServerError
	switch kind {
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.DuplicateActiveRecord, apperr.HasChildren:
		status = http.StatusConflict
	case apperr.InvariantViolation, apperr.InvalidSiblingSet, apperr.InvalidValue,
		apperr.InvalidTransition, apperr.NotARoot, apperr.NotLeaf:
		status = http.StatusBadRequest
	default:
		code = "internal_error"
		msg = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
