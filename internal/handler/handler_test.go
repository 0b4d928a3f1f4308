package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagate/wagate/internal/audit"
	"github.com/wagate/wagate/internal/config"
	"github.com/wagate/wagate/internal/middleware"
	"github.com/wagate/wagate/internal/model"
	"github.com/wagate/wagate/internal/repository"
	"github.com/wagate/wagate/internal/utils"
)

const testSecret = "handler-test-secret"

// testCfg returns config values the handlers read. Bcrypt cost is the
// library minimum to keep the suite fast.
func testCfg() config.Config {
	return config.Config{
		JWTSecret:     testSecret,
		TokenTTLDays:  1,
		BcryptCost:    4,
		CountryPrefix: "+91",
	}
}

// newMock returns a sqlmock-backed set of repositories sharing one
// fake database.
func newMock(t *testing.T) (*repository.UserRepo, *repository.SettingsRepo, *repository.MessageLogRepo, *repository.ActivityLogRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewUserRepo(db), repository.NewSettingsRepo(db),
		repository.NewMessageLogRepo(db), repository.NewActivityLogRepo(db), mock
}

// newAudit returns a recorder whose broker is unreachable, so every
// Record falls through to the direct insert against the shared mock.
func newAudit(logs *repository.ActivityLogRepo) *audit.Recorder {
	return audit.NewRecorder("amqp://127.0.0.1:1/", logs)
}

func userRows(u model.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "role", "status",
		"api_key", "rate_limit", "force_password_change", "created_at",
	}).AddRow(u.ID, u.Email, u.PasswordHash, u.Role, u.Status,
		u.APIKey, u.RateLimit, u.ForcePasswordChange, u.CreatedAt)
}

func settingsRows(s model.Settings) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"default_rate_limit", "max_rate_limit", "enable_registration", "maintenance_mode", "updated_at",
	}).AddRow(s.DefaultRateLimit, s.MaxRateLimit, s.EnableRegistration, s.MaintenanceMode, s.UpdatedAt)
}

func expectSettings(mock sqlmock.Sqlmock, s model.Settings) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM settings WHERE id=").WillReturnRows(settingsRows(s))
	mock.ExpectCommit()
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, path, body string, setup func(echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	require.NoError(t, h(c))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// ----- auth -----

func TestLogin_UnknownEmailMatchesWrongPassword(t *testing.T) {
	users, settings, _, activity, mock := newMock(t)
	h := NewAuthHandler(testCfg(), users, settings, newAudit(activity))

	hash, err := utils.HashPassword("Correct1pass", 4)
	require.NoError(t, err)
	u := model.User{ID: "u1", Email: "a@b.c", PasswordHash: hash,
		Role: model.RoleUser, Status: model.StatusActive, RateLimit: 30, CreatedAt: time.Now()}

	// Unknown email.
	mock.ExpectQuery("SELECT .+ FROM users WHERE email=").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	rec1 := doJSON(t, h.Login, http.MethodPost, "/api/auth/login",
		`{"email":"nobody@b.c","password":"Correct1pass"}`, nil)

	// Known email, wrong password.
	mock.ExpectQuery("SELECT .+ FROM users WHERE email=").WillReturnRows(userRows(u))
	rec2 := doJSON(t, h.Login, http.MethodPost, "/api/auth/login",
		`{"email":"a@b.c","password":"Wrong1password"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec1.Code)
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
	assert.Equal(t, rec1.Body.String(), rec2.Body.String())
}

func TestLogin_Success(t *testing.T) {
	users, settings, _, activity, mock := newMock(t)
	h := NewAuthHandler(testCfg(), users, settings, newAudit(activity))

	hash, err := utils.HashPassword("Correct1pass", 4)
	require.NoError(t, err)
	u := model.User{ID: "u1", Email: "a@b.c", PasswordHash: hash,
		Role: model.RoleUser, Status: model.StatusActive, RateLimit: 30, CreatedAt: time.Now()}

	mock.ExpectQuery("SELECT .+ FROM users WHERE email=").WillReturnRows(userRows(u))
	expectSettings(mock, model.Settings{DefaultRateLimit: 30, MaxRateLimit: 100, EnableRegistration: true})
	mock.ExpectExec("INSERT INTO activity_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.Login, http.MethodPost, "/api/auth/login",
		`{"email":"a@b.c","password":"Correct1pass"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "bearer", body["token_type"])
	token, _ := body["access_token"].(string)
	claims, err := utils.ParseAccessToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	user, _ := body["user"].(map[string]interface{})
	require.NotNil(t, user)
	assert.Equal(t, "a@b.c", user["email"])
	assert.NotContains(t, rec.Body.String(), hash)
}

func TestLogin_MaintenanceBlocksNonAdmin(t *testing.T) {
	users, settings, _, activity, mock := newMock(t)
	h := NewAuthHandler(testCfg(), users, settings, newAudit(activity))

	hash, err := utils.HashPassword("Correct1pass", 4)
	require.NoError(t, err)
	u := model.User{ID: "u1", Email: "a@b.c", PasswordHash: hash,
		Role: model.RoleUser, Status: model.StatusActive, RateLimit: 30, CreatedAt: time.Now()}

	mock.ExpectQuery("SELECT .+ FROM users WHERE email=").WillReturnRows(userRows(u))
	expectSettings(mock, model.Settings{DefaultRateLimit: 30, MaxRateLimit: 100, MaintenanceMode: true})

	rec := doJSON(t, h.Login, http.MethodPost, "/api/auth/login",
		`{"email":"a@b.c","password":"Correct1pass"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "maintenance_mode", decodeBody(t, rec)["error"])
}

func TestRegister_Disabled(t *testing.T) {
	users, settings, _, activity, mock := newMock(t)
	h := NewAuthHandler(testCfg(), users, settings, newAudit(activity))

	expectSettings(mock, model.Settings{DefaultRateLimit: 30, MaxRateLimit: 100, EnableRegistration: false})

	rec := doJSON(t, h.Register, http.MethodPost, "/api/auth/register",
		`{"email":"new@b.c","password":"Strong1pass"}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "authorization_failed", decodeBody(t, rec)["error"])
}

func TestRegister_WeakPassword(t *testing.T) {
	users, settings, _, activity, _ := newMock(t)
	h := NewAuthHandler(testCfg(), users, settings, newAudit(activity))

	rec := doJSON(t, h.Register, http.MethodPost, "/api/auth/register",
		`{"email":"new@b.c","password":"short"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeBody(t, rec)["error"])
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	users, settings, _, activity, _ := newMock(t)
	h := NewAuthHandler(testCfg(), users, settings, newAudit(activity))

	hash, err := utils.HashPassword("Correct1pass", 4)
	require.NoError(t, err)
	u := model.User{ID: "u1", Email: "a@b.c", PasswordHash: hash, Status: model.StatusActive}

	rec := doJSON(t, h.ChangePassword, http.MethodPost, "/api/auth/change-password",
		`{"current_password":"Nope1nope","new_password":"Another1pass"}`,
		func(c echo.Context) { c.Set(middleware.CtxUser, u) })
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["message"], "incorrect")
}

func TestChangePassword_ClearsForceFlag(t *testing.T) {
	users, settings, _, activity, mock := newMock(t)
	h := NewAuthHandler(testCfg(), users, settings, newAudit(activity))

	hash, err := utils.HashPassword("Correct1pass", 4)
	require.NoError(t, err)
	u := model.User{ID: "u1", Email: "a@b.c", PasswordHash: hash,
		Status: model.StatusActive, ForcePasswordChange: true}

	mock.ExpectExec("UPDATE users SET password_hash=.+, force_password_change=").
		WithArgs(sqlmock.AnyArg(), false, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO activity_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.ChangePassword, http.MethodPost, "/api/auth/change-password",
		`{"current_password":"Correct1pass","new_password":"Another1pass"}`,
		func(c echo.Context) { c.Set(middleware.CtxUser, u) })

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_SettingsReadErrorFailsOpen(t *testing.T) {
	users, settings, _, activity, mock := newMock(t)
	h := NewAuthHandler(testCfg(), users, settings, newAudit(activity))

	hash, err := utils.HashPassword("Correct1pass", 4)
	require.NoError(t, err)
	u := model.User{ID: "u1", Email: "a@b.c", PasswordHash: hash,
		Role: model.RoleUser, Status: model.StatusActive, RateLimit: 30, CreatedAt: time.Now()}

	mock.ExpectQuery("SELECT .+ FROM users WHERE email=").WillReturnRows(userRows(u))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM settings WHERE id=").
		WillReturnError(errors.New("settings table gone"))
	mock.ExpectRollback()
	mock.ExpectExec("INSERT INTO activity_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.Login, http.MethodPost, "/api/auth/login",
		`{"email":"a@b.c","password":"Correct1pass"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
