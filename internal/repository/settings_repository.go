package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wagate/wagate/internal/model"
)

// settingsRow is the fixed primary key of the singleton settings
// record.
const settingsRow = 1

// SettingsRepo persists the singleton settings record.
type SettingsRepo struct{ DB *sql.DB }

func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{DB: db} }

// Get returns the settings row, creating it with defaults on first
// access. The read-then-insert runs inside one transaction and the
// insert uses INSERT IGNORE against the fixed key, so two concurrent
// first reads cannot produce duplicate rows.
func (r *SettingsRepo) Get(ctx context.Context) (model.Settings, error) {
	var s model.Settings

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return s, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		"SELECT default_rate_limit,max_rate_limit,enable_registration,maintenance_mode,updated_at FROM settings WHERE id=?",
		settingsRow).Scan(&s.DefaultRateLimit, &s.MaxRateLimit, &s.EnableRegistration, &s.MaintenanceMode, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		if _, err := tx.ExecContext(ctx,
			"INSERT IGNORE INTO settings (id,default_rate_limit,max_rate_limit,enable_registration,maintenance_mode) VALUES (?,?,?,?,?)",
			settingsRow, model.DefaultRateLimit, model.DefaultMaxRateLimit, true, false); err != nil {
			return s, err
		}
		// Locking re-read: under REPEATABLE READ a plain SELECT would
		// reuse the empty snapshot when another transaction won the
		// insert race, so the loser would see no row.
		err = tx.QueryRowContext(ctx,
			"SELECT default_rate_limit,max_rate_limit,enable_registration,maintenance_mode,updated_at FROM settings WHERE id=? FOR UPDATE",
			settingsRow).Scan(&s.DefaultRateLimit, &s.MaxRateLimit, &s.EnableRegistration, &s.MaintenanceMode, &s.UpdatedAt)
	}
	if err != nil {
		return s, err
	}
	return s, tx.Commit()
}

// SettingsUpdate is the allow-listed set of fields an admin may change.
// Nil fields are left untouched.
type SettingsUpdate struct {
	DefaultRateLimit   *int
	MaxRateLimit       *int
	EnableRegistration *bool
	MaintenanceMode    *bool
}

// Update applies the non-nil fields of upd to the settings row and
// bumps updated_at. Returns ErrEmptyUpdate when nothing is set.
func (r *SettingsRepo) Update(ctx context.Context, upd SettingsUpdate) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	if upd.DefaultRateLimit != nil {
		set = append(set, "default_rate_limit=?")
		args = append(args, *upd.DefaultRateLimit)
	}
	if upd.MaxRateLimit != nil {
		set = append(set, "max_rate_limit=?")
		args = append(args, *upd.MaxRateLimit)
	}
	if upd.EnableRegistration != nil {
		set = append(set, "enable_registration=?")
		args = append(args, *upd.EnableRegistration)
	}
	if upd.MaintenanceMode != nil {
		set = append(set, "maintenance_mode=?")
		args = append(args, *upd.MaintenanceMode)
	}
	if len(set) == 0 {
		return ErrEmptyUpdate
	}
	set = append(set, "updated_at=NOW()")
	args = append(args, settingsRow)
	_, err := r.DB.ExecContext(ctx,
		fmt.Sprintf("UPDATE settings SET %s WHERE id=?", strings.Join(set, ", ")), args...)
	return err
}
