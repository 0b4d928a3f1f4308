package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wagate/wagate/internal/audit"
	"github.com/wagate/wagate/internal/middleware"
	"github.com/wagate/wagate/internal/model"
	"github.com/wagate/wagate/internal/repository"
	"github.com/wagate/wagate/internal/utils"
)

// KeyHandler manages the caller's integration api key.
type KeyHandler struct {
	Users *repository.UserRepo
	Audit *audit.Recorder
}

func NewKeyHandler(u *repository.UserRepo, a *audit.Recorder) *KeyHandler {
	return &KeyHandler{Users: u, Audit: a}
}

// Regenerate replaces the caller's api key. The old key stops working
// the moment the new row is committed; in-flight requests carrying it
// will fail their lookup.
func (h *KeyHandler) Regenerate(c echo.Context) error {
	u := c.Get(middleware.CtxUser).(model.User)

	key, err := utils.GenerateAPIKey()
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "generate api key failed")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.UpdateAPIKey(ctx, u.ID, key); err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "update api key failed")
	}

	h.Audit.Record(ctx, u.ID, u.Email, model.ActionAPIKeyRegenerated, "api key regenerated", c.RealIP())
	return c.JSON(http.StatusOK, echo.Map{"api_key": key, "message": "API key regenerated successfully"})
}
