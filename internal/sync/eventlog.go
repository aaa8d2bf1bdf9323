package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event is one append-only audit entry: who did what to which entity.
type Event struct {
	Offset    int64
	SiteID    string
	Type      string // e.g., tree.node_created, eval.status_changed
	Key       string // natural key: node or record id
	Actor     string // acting subject from the session token, opaque
	DataJSON  string
	CreatedAt int64
}

type EventRepo struct {
	db     *sql.DB
	siteID string
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	return &EventRepo{db: db, siteID: siteID}
}

func (r *EventRepo) Append(ctx context.Context, typ, key, actor string, data any) error {
	if r == nil || r.db == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, actor, data, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		r.siteID, typ, key, actor, string(payload), time.Now().Unix())
	return err
}
