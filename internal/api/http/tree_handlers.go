package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/brightsteps/brightsteps-assess/internal/auth/middleware"
	"github.com/brightsteps/brightsteps-assess/internal/cache"
	syncx "github.com/brightsteps/brightsteps-assess/internal/sync"
	"github.com/brightsteps/brightsteps-assess/internal/tree"
)

func CreateNodeHandler(mut *tree.Mutator, treeCache *cache.TreeCache, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in tree.NodeInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		n, err := mut.CreateNode(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		treeCache.Invalidate(r.Context())
		auditLog(r, audit, "tree.node_created", n.ID, map[string]any{"name": n.Name, "parent_id": n.ParentID})
		writeJSON(w, http.StatusCreated, n)
	}
}

func GetNodeHandler(store tree.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := store.Get(r.Context(), chi.URLParam(r, "nodeID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

func GetRootsHandler(store tree.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roots, err := store.FindRoots(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roots)
	}
}

func GetStructureHandler(asm *tree.Assembler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forest, err := asm.AssembleForest(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, forest)
	}
}

func GetSubtreeHandler(asm *tree.Assembler, treeCache *cache.TreeCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rootID := chi.URLParam(r, "nodeID")
		if payload, ok := treeCache.GetSubtree(r.Context(), rootID); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(payload)
			return
		}
		st, err := asm.AssembleSubtree(r.Context(), rootID)
		if err != nil {
			writeError(w, err)
			return
		}
		payload, err := json.Marshal(st)
		if err != nil {
			writeError(w, err)
			return
		}
		treeCache.PutSubtree(r.Context(), rootID, payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}
}

func GetChildrenHandler(store tree.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		children, err := store.FindChildren(r.Context(), chi.URLParam(r, "parentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, children)
	}
}

func UpdateNodeHandler(mut *tree.Mutator, treeCache *cache.TreeCache, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "nodeID")
		var patch tree.NodePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		n, err := mut.UpdateNode(r.Context(), id, patch)
		if err != nil {
			writeError(w, err)
			return
		}
		treeCache.Invalidate(r.Context())
		auditLog(r, audit, "tree.node_updated", n.ID, map[string]any{"name": n.Name})
		writeJSON(w, http.StatusOK, n)
	}
}

func DeleteNodeHandler(mut *tree.Mutator, treeCache *cache.TreeCache, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "nodeID")
		cascade := r.URL.Query().Get("cascade") == "true"
		if err := mut.DeleteNode(r.Context(), id, cascade); err != nil {
			writeError(w, err)
			return
		}
		treeCache.Invalidate(r.Context())
		auditLog(r, audit, "tree.node_deleted", id, map[string]any{"cascade": cascade})
		w.WriteHeader(http.StatusNoContent)
	}
}

func ReorderSiblingsHandler(mut *tree.Mutator, treeCache *cache.TreeCache, audit *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ParentID *string  `json:"parent_id"`
			NodeIDs  []string `json:"node_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if len(req.NodeIDs) == 0 {
			http.Error(w, "node_ids required", 400)
			return
		}
		nodes, err := mut.ReorderSiblings(r.Context(), req.ParentID, req.NodeIDs)
		if err != nil {
			writeError(w, err)
			return
		}
		treeCache.Invalidate(r.Context())
		key := "roots"
		if req.ParentID != nil {
			key = *req.ParentID
		}
		auditLog(r, audit, "tree.siblings_reordered", key, map[string]any{"order": req.NodeIDs})
		writeJSON(w, http.StatusOK, nodes)
	}
}

// auditLog appends best-effort; a failed audit write never fails the request.
func auditLog(r *http.Request, audit *syncx.EventRepo, typ, key string, data map[string]any) {
	if audit == nil {
		return
	}
	actor := authmw.SubjectFromContext(r.Context())
	if err := audit.Append(context.WithoutCancel(r.Context()), typ, key, actor, data); err != nil {
		log.Printf("audit append %s: %v", typ, err)
	}
}
