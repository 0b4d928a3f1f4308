package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wagate/wagate/internal/relay"
)

// internalSecretHeader authenticates engine callbacks. When no secret
// is configured the endpoint trusts the network boundary instead.
const internalSecretHeader = "X-Internal-Secret"

// WSEventHandler receives session events pushed by the engine and
// relays them to the user's live connections.
type WSEventHandler struct {
	Relay  *relay.Relay
	Secret string
}

func NewWSEventHandler(r *relay.Relay, secret string) *WSEventHandler {
	return &WSEventHandler{Relay: r, Secret: secret}
}

type engineEvent struct {
	Event  string      `json:"event"`
	UserID string      `json:"user_id"`
	Data   interface{} `json:"data"`
}

// Receive accepts one engine event and broadcasts it. Always 200 on a
// valid payload even when nobody is connected: delivery is
// best-effort and the engine never retries.
func (h *WSEventHandler) Receive(c echo.Context) error {
	if h.Secret != "" {
		got := c.Request().Header.Get(internalSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			return fail(c, http.StatusUnauthorized, errAuthentication, "invalid internal secret")
		}
	}

	var ev engineEvent
	if err := c.Bind(&ev); err != nil {
		return fail(c, http.StatusBadRequest, errValidation, "invalid body")
	}
	if ev.Event == "" || ev.UserID == "" {
		return fail(c, http.StatusBadRequest, errValidation, "event and user_id required")
	}

	h.Relay.Broadcast(ev.UserID, ev.Event, ev.Data)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
