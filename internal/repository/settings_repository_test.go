package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagate/wagate/internal/model"
)

func newSettingsMock(t *testing.T) (*SettingsRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSettingsRepo(db), mock
}

func settingsRows(s model.Settings) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"default_rate_limit", "max_rate_limit", "enable_registration", "maintenance_mode", "updated_at",
	}).AddRow(s.DefaultRateLimit, s.MaxRateLimit, s.EnableRegistration, s.MaintenanceMode, s.UpdatedAt)
}

func TestSettingsRepo_Get_Existing(t *testing.T) {
	repo, mock := newSettingsMock(t)

	want := model.Settings{DefaultRateLimit: 40, MaxRateLimit: 100, EnableRegistration: true, UpdatedAt: time.Now().UTC()}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM settings WHERE id=").
		WithArgs(1).
		WillReturnRows(settingsRows(want))
	mock.ExpectCommit()

	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, got.DefaultRateLimit)
	assert.True(t, got.EnableRegistration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepo_Get_CreatesDefaultsLazily(t *testing.T) {
	repo, mock := newSettingsMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM settings WHERE id=").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"default_rate_limit"}))
	mock.ExpectExec("INSERT IGNORE INTO settings").
		WithArgs(1, model.DefaultRateLimit, model.DefaultMaxRateLimit, true, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM settings WHERE id=. FOR UPDATE").
		WithArgs(1).
		WillReturnRows(settingsRows(model.Settings{
			DefaultRateLimit:   model.DefaultRateLimit,
			MaxRateLimit:       model.DefaultMaxRateLimit,
			EnableRegistration: true,
			UpdatedAt:          time.Now().UTC(),
		}))
	mock.ExpectCommit()

	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultRateLimit, got.DefaultRateLimit)
	assert.Equal(t, model.DefaultMaxRateLimit, got.MaxRateLimit)
	assert.False(t, got.MaintenanceMode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepo_Update_Partial(t *testing.T) {
	repo, mock := newSettingsMock(t)

	v := 40
	mock.ExpectExec("UPDATE settings SET default_rate_limit=., updated_at=NOW..").
		WithArgs(v, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), SettingsUpdate{DefaultRateLimit: &v}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepo_Update_EmptySet(t *testing.T) {
	repo, _ := newSettingsMock(t)
	assert.ErrorIs(t, repo.Update(context.Background(), SettingsUpdate{}), ErrEmptyUpdate)
}
