package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagate/wagate/internal/dispatch"
	"github.com/wagate/wagate/internal/gateway"
	"github.com/wagate/wagate/internal/middleware"
	"github.com/wagate/wagate/internal/model"
)

// fakeEngine answers every send with the configured response.
func fakeEngine(t *testing.T, status int, body string) *gateway.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return gateway.New(srv.URL)
}

func TestSend_HourlyQuotaExhausted(t *testing.T) {
	users, _, messages, _, mock := newMock(t)
	h := NewMessageHandler(users, messages, dispatch.New(fakeEngine(t, 200, `{"success":true}`), messages, "+91"))

	u := model.User{ID: "u1", Email: "a@b.c", Status: model.StatusActive, RateLimit: 5}
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM message_logs WHERE user_id=").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(5))

	rec := doJSON(t, h.Send, http.MethodPost, "/api/messages/send",
		`{"number":"9876543210","message":"hi"}`,
		func(c echo.Context) { c.Set(middleware.CtxUser, u) })

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeBody(t, rec)["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSend_FailedAttemptsStillConsumeQuota(t *testing.T) {
	users, _, messages, _, mock := newMock(t)
	h := NewMessageHandler(users, messages, dispatch.New(fakeEngine(t, 200, `{"success":true}`), messages, "+91"))

	// rate_limit 5 with 4 prior rows: the count does not distinguish
	// sent from failed, so this request is still allowed.
	u := model.User{ID: "u1", Email: "a@b.c", Status: model.StatusActive, RateLimit: 5}
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM message_logs WHERE user_id=").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(4))
	mock.ExpectExec("INSERT INTO message_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.Send, http.MethodPost, "/api/messages/send",
		`{"number":"9876543210","message":"hi"}`,
		func(c echo.Context) { c.Set(middleware.CtxUser, u) })

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "+919876543210", body["to"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendWithKey_Success(t *testing.T) {
	users, _, messages, _, mock := newMock(t)
	h := NewMessageHandler(users, messages, dispatch.New(fakeEngine(t, 200, `{"success":true}`), messages, "+91"))

	u := model.User{ID: "u2", Email: "k@b.c", Status: model.StatusActive,
		APIKey: "key123", RateLimit: 30, CreatedAt: time.Now()}
	mock.ExpectQuery("SELECT .+ FROM users WHERE api_key=").WillReturnRows(userRows(u))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM message_logs WHERE user_id=").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("INSERT INTO message_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.SendWithKey, http.MethodGet,
		"/api/send?api_key=key123&number=%2B15550001&msg=hello", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "+15550001", decodeBody(t, rec)["to"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendWithKey_InvalidKey(t *testing.T) {
	users, _, messages, _, mock := newMock(t)
	h := NewMessageHandler(users, messages, dispatch.New(fakeEngine(t, 200, `{"success":true}`), messages, "+91"))

	mock.ExpectQuery("SELECT .+ FROM users WHERE api_key=").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := doJSON(t, h.SendWithKey, http.MethodGet,
		"/api/send?api_key=bogus&number=123&msg=hi", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendWithKey_SuspendedAccount(t *testing.T) {
	users, _, messages, _, mock := newMock(t)
	h := NewMessageHandler(users, messages, dispatch.New(fakeEngine(t, 200, `{"success":true}`), messages, "+91"))

	u := model.User{ID: "u2", Email: "k@b.c", Status: model.StatusSuspended,
		APIKey: "key123", RateLimit: 30, CreatedAt: time.Now()}
	mock.ExpectQuery("SELECT .+ FROM users WHERE api_key=").WillReturnRows(userRows(u))

	rec := doJSON(t, h.SendWithKey, http.MethodGet,
		"/api/send?api_key=key123&number=123&msg=hi", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account_deactivated", decodeBody(t, rec)["error"])
}

func TestSend_EngineDeclineIsDispatchFailed(t *testing.T) {
	users, _, messages, _, mock := newMock(t)
	h := NewMessageHandler(users, messages,
		dispatch.New(fakeEngine(t, 200, `{"success":false,"error":"WhatsApp not connected"}`), messages, "+91"))

	u := model.User{ID: "u1", Email: "a@b.c", Status: model.StatusActive, RateLimit: 5}
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM message_logs WHERE user_id=").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("INSERT INTO message_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.Send, http.MethodPost, "/api/messages/send",
		`{"number":"123","message":"hi"}`,
		func(c echo.Context) { c.Set(middleware.CtxUser, u) })

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "dispatch_failed", body["error"])
	assert.Equal(t, "WhatsApp not connected", body["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
