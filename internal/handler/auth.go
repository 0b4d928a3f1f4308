package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wagate/wagate/internal/audit"
	"github.com/wagate/wagate/internal/config"
	"github.com/wagate/wagate/internal/middleware"
	"github.com/wagate/wagate/internal/model"
	"github.com/wagate/wagate/internal/repository"
	"github.com/wagate/wagate/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Settings *repository.SettingsRepo
	Audit    *audit.Recorder
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, s *repository.SettingsRepo, a *audit.Recorder) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Settings: s, Audit: a}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Register creates a self-service account when registration is open.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, errValidation, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return fail(c, http.StatusBadRequest, errValidation, "valid email required")
	}
	if err := utils.ValidatePasswordStrength(req.Password); err != nil {
		return fail(c, http.StatusBadRequest, errValidation, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	settings, err := h.Settings.Get(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "load settings failed")
	}
	if !settings.EnableRegistration {
		return fail(c, http.StatusForbidden, errAuthorization, "registration is disabled")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "hash password failed")
	}
	apiKey, err := utils.GenerateAPIKey()
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "generate api key failed")
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Status:       model.StatusActive,
		APIKey:       apiKey,
		RateLimit:    settings.DefaultRateLimit,
	}
	if err := h.Users.Create(ctx, u); err != nil {
		if err == repository.ErrEmailExists {
			return fail(c, http.StatusBadRequest, errConflict, "email already registered")
		}
		return fail(c, http.StatusInternalServerError, errInternal, "create user failed")
	}
	u.CreatedAt = time.Now().UTC()

	h.Audit.Record(ctx, u.ID, u.Email, model.ActionUserRegistered, "self-service registration", c.RealIP())
	return c.JSON(http.StatusOK, publicUser(*u))
}

// Login verifies credentials and returns a bearer token. A wrong
// password and an unknown email produce identical responses so the
// endpoint cannot be used to probe for accounts.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, errValidation, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, errValidation, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, errAuthentication, "invalid credentials")
	}
	if u.Status != model.StatusActive {
		return fail(c, http.StatusForbidden, errAccountDeactivated, "account is "+u.Status)
	}
	if u.Role != model.RoleAdmin {
		settings, err := h.Settings.Get(ctx)
		if err != nil {
			// Fail open: a broken settings read must not lock every
			// non-admin out, but it has to show up in the logs.
			log.Printf("login: settings read failed, skipping maintenance gate: %v", err)
		} else if settings.MaintenanceMode {
			return fail(c, http.StatusServiceUnavailable, errMaintenance, "service is under maintenance")
		}
	}

	token, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, u.Role, h.Cfg.TokenTTLDays)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "issue token failed")
	}

	h.Audit.Record(ctx, u.ID, u.Email, model.ActionUserLogin, "login", c.RealIP())
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token,
		"token_type":   "bearer",
		"user":         publicUser(u),
	})
}

// Me returns the caller's own record, including the
// force_password_change flag the UI uses to gate the dashboard.
func (h *AuthHandler) Me(c echo.Context) error {
	u := c.Get(middleware.CtxUser).(model.User)
	return c.JSON(http.StatusOK, publicUser(u))
}

// ChangePassword verifies the current password, validates the new one
// and clears force_password_change in the same statement that writes
// the new hash.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	u := c.Get(middleware.CtxUser).(model.User)

	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, errValidation, "invalid body")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return fail(c, http.StatusBadRequest, errValidation, "current password is incorrect")
	}
	if err := utils.ValidatePasswordStrength(req.NewPassword); err != nil {
		return fail(c, http.StatusBadRequest, errValidation, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "hash password failed")
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash, false); err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "update password failed")
	}

	h.Audit.Record(ctx, u.ID, u.Email, model.ActionPasswordChanged, "password changed", c.RealIP())
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Password changed successfully"})
}
