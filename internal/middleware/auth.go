package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wagate/wagate/internal/model"
	"github.com/wagate/wagate/internal/repository"
	"github.com/wagate/wagate/internal/utils"
)

// Context keys set by the auth middleware and read by handlers.
const (
	CtxUser   = "user"    // model.User of the authenticated caller
	CtxUserID = "user_id" // string id shortcut
	CtxRole   = "role"    // string role shortcut
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and loads the caller's live user row into the request context.
// Token validity is signature+expiry only, but account status is
// checked against the freshly fetched row so a suspension takes effect
// on the next request, not at token expiry.
func JWTAuth(secret string, users *repository.UserRepo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "authentication_failed", "message": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				msg := "invalid token"
				if err == utils.ErrTokenExpired {
					msg = "token expired"
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "authentication_failed", "message": msg})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			u, err := users.GetByID(ctx, claims.UserID)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "authentication_failed", "message": "user not found"})
			}
			if u.Status != model.StatusActive {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "account_deactivated", "message": "account is " + u.Status})
			}

			c.Set(CtxUser, u)
			c.Set(CtxUserID, u.ID)
			c.Set(CtxRole, u.Role)
			return next(c)
		}
	}
}

// RequireRole returns a middleware that aborts with 403 unless the
// authenticated caller holds one of the given roles. It assumes
// JWTAuth ran earlier in the chain.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxRole).(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "authorization_failed", "message": "forbidden"})
			}
			return next(c)
		}
	}
}
