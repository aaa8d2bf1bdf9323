package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	api "github.com/brightsteps/brightsteps-assess/internal/api/http"
	auth "github.com/brightsteps/brightsteps-assess/internal/auth/middleware"
	"github.com/brightsteps/brightsteps-assess/internal/cache"
	"github.com/brightsteps/brightsteps-assess/internal/config"
	"github.com/brightsteps/brightsteps-assess/internal/db"
	"github.com/brightsteps/brightsteps-assess/internal/eval"
	"github.com/brightsteps/brightsteps-assess/internal/rbac"
	"github.com/brightsteps/brightsteps-assess/internal/roster"
	syncx "github.com/brightsteps/brightsteps-assess/internal/sync"
	"github.com/brightsteps/brightsteps-assess/internal/tree"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	nodeStore := tree.NewSQLStore(dbh, cfg.DBDriver)
	assembler := tree.NewAssembler(nodeStore)
	mutator := tree.NewMutator(nodeStore)

	recordStore := eval.NewSQLStore(dbh, cfg.DBDriver)
	builder := eval.NewBuilder(nodeStore, assembler, recordStore)
	updater := eval.NewUpdater(recordStore)

	rosterStore := roster.NewSQLStore(dbh)
	audit := syncx.NewEventRepo(dbh, cfg.SiteID)

	// --- Subtree cache (optional) ---
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis unreachable, cache disabled: %v", err)
			rdb = nil
		}
	}
	treeCache := cache.New(rdb, cfg.TreeCacheTTL)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	// Protected API (JWT → authoritative role → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		// Assessment tool trees. Reads are open to any staff role; edits are
		// admin-only under the default policy.
		pr.With(rbac.Require("tree:view")).
			Get("/tree/structure", api.GetStructureHandler(assembler))
		pr.With(rbac.Require("tree:view")).
			Get("/tree/roots", api.GetRootsHandler(nodeStore))
		pr.With(rbac.Require("tree:view")).
			Get("/tree/nodes/{nodeID}", api.GetNodeHandler(nodeStore))
		pr.With(rbac.Require("tree:view")).
			Get("/tree/nodes/{nodeID}/subtree", api.GetSubtreeHandler(assembler, treeCache))
		pr.With(rbac.Require("tree:view")).
			Get("/tree/children/{parentID}", api.GetChildrenHandler(nodeStore))

		pr.With(rbac.Require("tree:edit")).
			Post("/tree/nodes", api.CreateNodeHandler(mutator, treeCache, audit))
		pr.With(rbac.Require("tree:edit")).
			Put("/tree/nodes/{nodeID}", api.UpdateNodeHandler(mutator, treeCache, audit))
		pr.With(rbac.Require("tree:edit")).
			Delete("/tree/nodes/{nodeID}", api.DeleteNodeHandler(mutator, treeCache, audit))
		pr.With(rbac.Require("tree:edit")).
			Post("/tree/reorder", api.ReorderSiblingsHandler(mutator, treeCache, audit))

		// Evaluation records
		pr.With(rbac.Require("eval:create")).
			Post("/evaluations", api.CreateEvaluationHandler(builder, rosterStore, audit))
		pr.With(rbac.Require("eval:view")).
			Get("/evaluations", api.ListEvaluationsHandler(recordStore))
		pr.With(rbac.Require("eval:view")).
			Get("/evaluations/{recordID}", api.GetEvaluationHandler(recordStore))
		pr.With(rbac.Require("eval:view")).
			Get("/evaluations/student/{studentID}", api.EvaluationsByStudentHandler(recordStore))
		pr.With(rbac.Require("eval:view")).
			Get("/evaluations/tool/{toolID}", api.EvaluationsByToolHandler(recordStore))

		pr.With(rbac.Require("eval:score")).
			Patch("/evaluations/{recordID}/nodes/{nodeID}", api.UpdateNodeScoreHandler(updater, audit))
		pr.With(rbac.Require("eval:score")).
			Put("/evaluations/{recordID}/scores", api.ReplaceScoresHandler(updater, audit))
		pr.With(rbac.Require("eval:score")).
			Post("/evaluations/{recordID}/status", api.TransitionStatusHandler(updater, audit))
		pr.With(rbac.Require("eval:delete")).
			Delete("/evaluations/{recordID}", api.DeleteEvaluationHandler(recordStore, audit))

		// Roster
		pr.With(rbac.Require("roster:view")).
			Get("/students", api.ListStudentsHandler(rosterStore))
		pr.With(rbac.Require("roster:view")).
			Get("/students/{studentID}", api.GetStudentHandler(rosterStore))
		pr.With(rbac.Require("roster:manage")).
			Post("/students", api.CreateStudentHandler(rosterStore, audit))
		pr.With(rbac.Require("roster:manage")).
			Put("/students/{studentID}", api.UpdateStudentHandler(rosterStore, audit))
		pr.With(rbac.Require("roster:manage")).
			Delete("/students/{studentID}", api.DeleteStudentHandler(rosterStore, audit))

		pr.With(rbac.Require("roster:view")).
			Get("/groups", api.ListGroupsHandler(rosterStore))
		pr.With(rbac.Require("roster:view")).
			Get("/groups/{groupID}", api.GetGroupHandler(rosterStore))
		pr.With(rbac.Require("roster:manage")).
			Post("/groups", api.CreateGroupHandler(rosterStore, audit))
		pr.With(rbac.Require("roster:manage")).
			Put("/groups/{groupID}", api.UpdateGroupHandler(rosterStore, audit))
		pr.With(rbac.Require("roster:manage")).
			Delete("/groups/{groupID}", api.DeleteGroupHandler(rosterStore, audit))

		// Staff accounts (admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
