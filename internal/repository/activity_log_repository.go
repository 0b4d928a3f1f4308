package repository

import (
	"context"
	"database/sql"

	"github.com/wagate/wagate/internal/model"
)

// ActivityLogRepo persists the append-only audit trail. Rows are never
// updated or deleted.
type ActivityLogRepo struct{ DB *sql.DB }

func NewActivityLogRepo(db *sql.DB) *ActivityLogRepo { return &ActivityLogRepo{DB: db} }

// Insert appends one audit record. The timestamp is carried by the
// record rather than defaulted by the database because rows may arrive
// through the queue consumer some time after the action happened.
func (r *ActivityLogRepo) Insert(ctx context.Context, a *model.ActivityLog) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO activity_logs (id,user_id,user_email,action,details,ip_address,created_at) VALUES (?,?,?,?,?,?,?)",
		a.ID, a.UserID, a.UserEmail, a.Action, a.Details, a.IPAddress, a.CreatedAt)
	return err
}

// List returns a page of audit records newest first plus the total
// count. limit is clamped to 1..200.
func (r *ActivityLogRepo) List(ctx context.Context, limit, skip int) ([]model.ActivityLog, int, error) {
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if skip < 0 {
		skip = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_logs").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,user_id,user_email,action,details,ip_address,created_at FROM activity_logs ORDER BY created_at DESC LIMIT ? OFFSET ?",
		limit, skip)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.ActivityLog
	for rows.Next() {
		var a model.ActivityLog
		if err := rows.Scan(&a.ID, &a.UserID, &a.UserEmail, &a.Action,
			&a.Details, &a.IPAddress, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}
