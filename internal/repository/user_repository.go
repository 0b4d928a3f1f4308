package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wagate/wagate/internal/model"
)

const userColumns = "id,email,password_hash,role,status,api_key,rate_limit,force_password_change,created_at"

// UserRepo persists user rows. All queries go through the shared
// process-wide pool; no method opens a transaction because every
// operation here is a single statement.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a fully-populated user row. The id, api key and hash
// are generated by the caller so the same code path serves both
// self-registration and admin creation.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id,email,password_hash,role,status,api_key,rate_limit,force_password_change) VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.PasswordHash, u.Role, u.Status, u.APIKey, u.RateLimit, u.ForcePasswordChange)
	if err != nil {
		// MySQL 1062 = duplicate entry on the unique email index.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
		&u.APIKey, &u.RateLimit, &u.ForcePasswordChange, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByAPIKey fetches the owner of an API key. A rotated key stops
// matching the moment the UPDATE lands, which is what gives key
// regeneration its no-grace-period semantics.
func (r *UserRepo) GetByAPIKey(ctx context.Context, key string) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE api_key=? LIMIT 1", key))
}

// List returns all users newest first plus the total count.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
			&u.APIKey, &u.RateLimit, &u.ForcePasswordChange, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdatePassword replaces the password hash and sets the
// force_password_change flag to the given value in one statement, so a
// reset (set) and a self-service change (clear) are both atomic.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string, forceChange bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, force_password_change=? WHERE id=?",
		hash, forceChange, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateAPIKey rotates a user's API key.
func (r *UserRepo) UpdateAPIKey(ctx context.Context, id, key string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET api_key=? WHERE id=?", key, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UserUpdate is the allow-listed set of fields an admin may change on
// an existing user. Nil fields are left untouched; unknown payload
// keys never reach this struct because the handler binds into it
// explicitly.
type UserUpdate struct {
	Role                *string
	Status              *string
	RateLimit           *int
	ForcePasswordChange *bool
}

// Update applies the non-nil fields of upd to the given user. It
// returns ErrEmptyUpdate when nothing is set and ErrNotFound when the
// user does not exist.
func (r *UserRepo) Update(ctx context.Context, id string, upd UserUpdate) error {
	set := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	if upd.Role != nil {
		set = append(set, "role=?")
		args = append(args, *upd.Role)
	}
	if upd.Status != nil {
		set = append(set, "status=?")
		args = append(args, *upd.Status)
	}
	if upd.RateLimit != nil {
		set = append(set, "rate_limit=?")
		args = append(args, *upd.RateLimit)
	}
	if upd.ForcePasswordChange != nil {
		set = append(set, "force_password_change=?")
		args = append(args, *upd.ForcePasswordChange)
	}
	if len(set) == 0 {
		return ErrEmptyUpdate
	}
	args = append(args, id)
	// Existence is checked by the caller; RowsAffected is not consulted
	// here because MySQL reports zero for updates that change nothing,
	// which would make repeated identical updates look like a missing row.
	_, err := r.DB.ExecContext(ctx,
		fmt.Sprintf("UPDATE users SET %s WHERE id=?", strings.Join(set, ", ")), args...)
	return err
}

// Delete removes a user permanently. Message and activity logs keep
// the dead user id for audit.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CountByStatus returns total users and how many are active.
func (r *UserRepo) CountByStatus(ctx context.Context) (total, active int, err error) {
	err = r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(status='active'),0) FROM users").Scan(&total, &active)
	return total, active, err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
