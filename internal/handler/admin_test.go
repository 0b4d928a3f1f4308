package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagate/wagate/internal/middleware"
	"github.com/wagate/wagate/internal/model"
	"github.com/wagate/wagate/internal/utils"
)

func newAdmin(t *testing.T) (*AdminHandler, sqlmock.Sqlmock) {
	t.Helper()
	users, settings, messages, activity, mock := newMock(t)
	h := NewAdminHandler(testCfg(), users, messages, activity, settings,
		fakeEngine(t, 200, `{}`), newAudit(activity))
	return h, mock
}

func asAdmin(c echo.Context) {
	c.Set(middleware.CtxUser, model.User{ID: "admin1", Email: "admin@admin.com",
		Role: model.RoleAdmin, Status: model.StatusActive})
	c.Set(middleware.CtxRole, model.RoleAdmin)
}

func TestResetPassword_IssuesTemporaryAndForcesChange(t *testing.T) {
	h, mock := newAdmin(t)

	target := model.User{ID: "u9", Email: "victim@b.c", Status: model.StatusActive,
		RateLimit: 30, CreatedAt: time.Now()}
	mock.ExpectQuery("SELECT .+ FROM users WHERE id=").WillReturnRows(userRows(target))
	mock.ExpectExec("UPDATE users SET password_hash=.+, force_password_change=").
		WithArgs(sqlmock.AnyArg(), true, "u9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO activity_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.ResetPassword, http.MethodPost, "/api/admin/users/u9/reset-password", "",
		func(c echo.Context) {
			asAdmin(c)
			c.SetParamNames("id")
			c.SetParamValues("u9")
		})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	temp, _ := body["temporary_password"].(string)
	require.Len(t, temp, 14)
	assert.NoError(t, utils.ValidatePasswordStrength(temp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPassword_UnknownUser(t *testing.T) {
	h, mock := newAdmin(t)

	mock.ExpectQuery("SELECT .+ FROM users WHERE id=").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := doJSON(t, h.ResetPassword, http.MethodPost, "/api/admin/users/nope/reset-password", "",
		func(c echo.Context) {
			asAdmin(c)
			c.SetParamNames("id")
			c.SetParamValues("nope")
		})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUser_SelfDeletionRejected(t *testing.T) {
	h, _ := newAdmin(t)

	rec := doJSON(t, h.DeleteUser, http.MethodDelete, "/api/admin/users/admin1", "",
		func(c echo.Context) {
			asAdmin(c)
			c.SetParamNames("id")
			c.SetParamValues("admin1")
		})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSettings_DefaultAboveMaxRejected(t *testing.T) {
	h, mock := newAdmin(t)

	expectSettings(mock, model.Settings{DefaultRateLimit: 30, MaxRateLimit: 100, EnableRegistration: true})

	rec := doJSON(t, h.UpdateSettings, http.MethodPut, "/api/admin/settings",
		`{"default_rate_limit":150}`, asAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeBody(t, rec)["error"])
}

func TestOverview_SuccessRate(t *testing.T) {
	h, mock := newAdmin(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\), COALESCE\\(SUM\\(status='active'\\)").
		WillReturnRows(sqlmock.NewRows([]string{"total", "active"}).AddRow(10, 8))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\), COALESCE\\(SUM\\(status='sent'\\)").
		WillReturnRows(sqlmock.NewRows([]string{"total", "sent", "failed"}).AddRow(200, 150, 50))

	rec := doJSON(t, h.Overview, http.MethodGet, "/api/admin/analytics/overview", "", asAdmin)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	msgs, _ := body["messages"].(map[string]interface{})
	require.NotNil(t, msgs)
	assert.InDelta(t, 75.0, msgs["success_rate"], 0.001)
}
