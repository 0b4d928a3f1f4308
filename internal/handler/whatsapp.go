package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wagate/wagate/internal/audit"
	"github.com/wagate/wagate/internal/gateway"
	"github.com/wagate/wagate/internal/middleware"
	"github.com/wagate/wagate/internal/model"
)

// WhatsAppHandler proxies engine session operations for the caller's
// own session. The user id from the token scopes every call; a user
// can never address another user's session through these routes.
type WhatsAppHandler struct {
	Engine *gateway.Client
	Audit  *audit.Recorder
}

func NewWhatsAppHandler(engine *gateway.Client, a *audit.Recorder) *WhatsAppHandler {
	return &WhatsAppHandler{Engine: engine, Audit: a}
}

// Initialize starts the caller's engine session.
func (h *WhatsAppHandler) Initialize(c echo.Context) error {
	u := c.Get(middleware.CtxUser).(model.User)

	out, err := h.Engine.Initialize(c.Request().Context(), u.ID)
	if err != nil {
		if errors.Is(err, gateway.ErrServiceUnavailable) {
			return fail(c, http.StatusServiceUnavailable, errServiceUnavailable, "whatsapp service unavailable")
		}
		return fail(c, http.StatusInternalServerError, errInternal, "initialize failed")
	}

	h.Audit.Record(c.Request().Context(), u.ID, u.Email, model.ActionWhatsAppInitialized, "session initialize", c.RealIP())
	return c.JSON(http.StatusOK, out)
}

// Status reports the caller's session state. Never fails: transport
// problems surface as a synthesized error status.
func (h *WhatsAppHandler) Status(c echo.Context) error {
	u := c.Get(middleware.CtxUser).(model.User)
	return c.JSON(http.StatusOK, h.Engine.Status(c.Request().Context(), u.ID))
}

// QR returns the pending login QR, or 404 when none exists.
func (h *WhatsAppHandler) QR(c echo.Context) error {
	u := c.Get(middleware.CtxUser).(model.User)

	qr, err := h.Engine.QR(c.Request().Context(), u.ID)
	if err != nil {
		if errors.Is(err, gateway.ErrQRNotAvailable) {
			return fail(c, http.StatusNotFound, errNotFound, "qr code not available")
		}
		return fail(c, http.StatusServiceUnavailable, errServiceUnavailable, "whatsapp service unavailable")
	}
	return c.JSON(http.StatusOK, qr)
}

// Disconnect tears down the caller's session.
func (h *WhatsAppHandler) Disconnect(c echo.Context) error {
	u := c.Get(middleware.CtxUser).(model.User)

	out, err := h.Engine.Disconnect(c.Request().Context(), u.ID)
	if err != nil {
		if errors.Is(err, gateway.ErrServiceUnavailable) {
			return fail(c, http.StatusServiceUnavailable, errServiceUnavailable, "whatsapp service unavailable")
		}
		return fail(c, http.StatusInternalServerError, errInternal, "disconnect failed")
	}

	h.Audit.Record(c.Request().Context(), u.ID, u.Email, model.ActionWhatsAppDisconnected, "session disconnect", c.RealIP())
	return c.JSON(http.StatusOK, out)
}
