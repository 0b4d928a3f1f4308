package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/wagate/wagate/internal/model"
)

// MessageLogRepo persists dispatch records. Rows are write-once; there
// is deliberately no update method.
type MessageLogRepo struct{ DB *sql.DB }

func NewMessageLogRepo(db *sql.DB) *MessageLogRepo { return &MessageLogRepo{DB: db} }

// Insert writes one terminal dispatch record.
func (r *MessageLogRepo) Insert(ctx context.Context, m *model.MessageLog) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO message_logs (id,user_id,receiver_number,message_body,status,source,error) VALUES (?,?,?,?,?,?,?)",
		m.ID, m.UserID, m.ReceiverNumber, m.MessageBody, m.Status, m.Source, m.Error)
	return err
}

// ListForUser returns the caller's own logs newest first, optionally
// filtered by status. limit is clamped to 1..500.
func (r *MessageLogRepo) ListForUser(ctx context.Context, userID, status string, limit int) ([]model.MessageLog, error) {
	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	q := "SELECT id,user_id,receiver_number,message_body,status,source,error,created_at FROM message_logs WHERE user_id=?"
	args := []interface{}{userID}
	if status != "" {
		q += " AND status=?"
		args = append(args, status)
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MessageLog
	for rows.Next() {
		var m model.MessageLog
		if err := rows.Scan(&m.ID, &m.UserID, &m.ReceiverNumber, &m.MessageBody,
			&m.Status, &m.Source, &m.Error, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountForUserSince counts a user's dispatch attempts in the trailing
// window. Both terminal statuses count against the hourly limit: a
// failed attempt still consumed a slot.
func (r *MessageLogRepo) CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM message_logs WHERE user_id=? AND created_at>=?",
		userID, since).Scan(&n)
	return n, err
}

// Totals returns overall message counts for the analytics overview.
func (r *MessageLogRepo) Totals(ctx context.Context) (total, sent, failed int, err error) {
	err = r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(status='sent'),0), COALESCE(SUM(status='failed'),0) FROM message_logs").
		Scan(&total, &sent, &failed)
	return total, sent, failed, err
}

// DayCount is one day's dispatch volume for the analytics charts.
type DayCount struct {
	Day    string `json:"date"`
	Total  int    `json:"total"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
}

// CountPerDay aggregates messages per calendar day over the trailing
// number of days.
func (r *MessageLogRepo) CountPerDay(ctx context.Context, days int) ([]DayCount, error) {
	if days < 1 {
		days = 7
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DATE(created_at), COUNT(*), COALESCE(SUM(status='sent'),0), COALESCE(SUM(status='failed'),0)
		 FROM message_logs WHERE created_at >= DATE_SUB(NOW(), INTERVAL ? DAY)
		 GROUP BY DATE(created_at) ORDER BY DATE(created_at)`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Day, &d.Total, &d.Sent, &d.Failed); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UserCount is one user's dispatch volume for the admin activity view.
type UserCount struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Total  int    `json:"total"`
}

// CountPerUser aggregates messages per user over the trailing number of
// days. Deleted users appear with an empty email since the join finds
// no row; the log entries themselves are retained.
func (r *MessageLogRepo) CountPerUser(ctx context.Context, days int) ([]UserCount, error) {
	if days < 1 {
		days = 7
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT m.user_id, COALESCE(u.email,''), COUNT(*)
		 FROM message_logs m LEFT JOIN users u ON u.id = m.user_id
		 WHERE m.created_at >= DATE_SUB(NOW(), INTERVAL ? DAY)
		 GROUP BY m.user_id, u.email ORDER BY COUNT(*) DESC`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserCount
	for rows.Next() {
		var u UserCount
		if err := rows.Scan(&u.UserID, &u.Email, &u.Total); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
