package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wagate/wagate/internal/dispatch"
	"github.com/wagate/wagate/internal/gateway"
	"github.com/wagate/wagate/internal/middleware"
	"github.com/wagate/wagate/internal/model"
	"github.com/wagate/wagate/internal/repository"
)

// MessageHandler serves the two dispatch surfaces (dashboard and api
// key) and the caller's own message history.
type MessageHandler struct {
	Users    *repository.UserRepo
	Logs     *repository.MessageLogRepo
	Recorder *dispatch.Recorder
}

func NewMessageHandler(u *repository.UserRepo, l *repository.MessageLogRepo, r *dispatch.Recorder) *MessageHandler {
	return &MessageHandler{Users: u, Logs: l, Recorder: r}
}

type sendReq struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

// Send dispatches one message for a bearer-authenticated caller.
func (h *MessageHandler) Send(c echo.Context) error {
	u := c.Get(middleware.CtxUser).(model.User)

	var req sendReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, errValidation, "invalid body")
	}
	return h.dispatch(c, u, req.Number, req.Message, model.SourceWeb)
}

// SendWithKey dispatches one message authenticated by api_key query
// parameter. This is the integration surface: everything arrives as
// query parameters so it can be called from a plain GET.
func (h *MessageHandler) SendWithKey(c echo.Context) error {
	key := strings.TrimSpace(c.QueryParam("api_key"))
	if key == "" {
		return fail(c, http.StatusUnauthorized, errAuthentication, "api_key required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByAPIKey(ctx, key)
	if err != nil {
		return fail(c, http.StatusUnauthorized, errAuthentication, "invalid api key")
	}
	if u.Status != model.StatusActive {
		return fail(c, http.StatusForbidden, errAccountDeactivated, "account is "+u.Status)
	}
	return h.dispatch(c, u, c.QueryParam("number"), c.QueryParam("msg"), model.SourceAPI)
}

// dispatch applies validation and the per-user hourly quota, then runs
// the recorder. The quota counts every attempt row (sent and failed) in
// the trailing hour, so failed sends still consume budget.
func (h *MessageHandler) dispatch(c echo.Context, u model.User, number, message, source string) error {
	number = strings.TrimSpace(number)
	message = strings.TrimSpace(message)
	if number == "" || message == "" {
		return fail(c, http.StatusBadRequest, errValidation, "number and message required")
	}

	ctx := c.Request().Context()

	since := time.Now().Add(-time.Hour)
	used, err := h.Logs.CountForUserSince(ctx, u.ID, since)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "rate check failed")
	}
	if used >= u.RateLimit {
		return fail(c, http.StatusTooManyRequests, errRateLimited,
			"hourly message limit of "+strconv.Itoa(u.RateLimit)+" reached")
	}

	res, err := h.Recorder.Send(ctx, u.ID, number, message, source)
	if err != nil {
		var de *gateway.DispatchError
		if errors.As(err, &de) {
			return fail(c, http.StatusInternalServerError, errDispatchFailed, de.Reason)
		}
		return fail(c, http.StatusServiceUnavailable, errServiceUnavailable, "whatsapp service unavailable")
	}
	return c.JSON(http.StatusOK, res)
}

// History returns the caller's own message logs, newest first.
// Supports ?status=sent|failed and ?limit= (default 50).
func (h *MessageHandler) History(c echo.Context) error {
	u := c.Get(middleware.CtxUser).(model.User)

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fail(c, http.StatusBadRequest, errValidation, "invalid limit")
		}
		limit = n
	}
	status := c.QueryParam("status")
	switch status {
	case "", model.MessageSent, model.MessageFailed:
	default:
		return fail(c, http.StatusBadRequest, errValidation, "invalid status filter")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	logs, err := h.Logs.ListForUser(ctx, u.ID, status, limit)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "list logs failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"logs": messageLogList(logs), "total": len(logs)})
}
