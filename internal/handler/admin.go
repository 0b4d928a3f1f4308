package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wagate/wagate/internal/audit"
	"github.com/wagate/wagate/internal/config"
	"github.com/wagate/wagate/internal/database"
	"github.com/wagate/wagate/internal/gateway"
	"github.com/wagate/wagate/internal/middleware"
	"github.com/wagate/wagate/internal/model"
	"github.com/wagate/wagate/internal/repository"
	"github.com/wagate/wagate/internal/utils"
)

// AdminHandler serves the management surface: user lifecycle, global
// settings, the audit trail, analytics and system status. Every route
// behind it is gated by RequireRole(admin) in the router.
type AdminHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Messages *repository.MessageLogRepo
	Activity *repository.ActivityLogRepo
	Settings *repository.SettingsRepo
	Engine   *gateway.Client
	Audit    *audit.Recorder
	Health   func(ctx context.Context) string // database probe
}

func NewAdminHandler(cfg config.Config, users *repository.UserRepo, msgs *repository.MessageLogRepo,
	activity *repository.ActivityLogRepo, settings *repository.SettingsRepo,
	engine *gateway.Client, a *audit.Recorder) *AdminHandler {
	return &AdminHandler{
		Cfg: cfg, Users: users, Messages: msgs, Activity: activity,
		Settings: settings, Engine: engine, Audit: a,
		Health: func(ctx context.Context) string { return database.Check(ctx, users.DB) },
	}
}

func (h *AdminHandler) actor(c echo.Context) model.User {
	return c.Get(middleware.CtxUser).(model.User)
}

// ----- users -----

// ListUsers returns every user, newest first.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "list users failed")
	}
	out := make([]UserPublic, 0, len(users))
	for _, u := range users {
		out = append(out, publicUser(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out, "total": len(out)})
}

type createUserReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	RateLimit *int   `json:"rate_limit"`
}

// CreateUser provisions an account directly, bypassing the
// registration toggle. Role defaults to user, rate limit to the
// settings default.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req createUserReq
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
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return fail(c, http.StatusBadRequest, errValidation, "invalid role")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	settings, err := h.Settings.Get(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "load settings failed")
	}
	rate := settings.DefaultRateLimit
	if req.RateLimit != nil {
		if *req.RateLimit < 1 || *req.RateLimit > settings.MaxRateLimit {
			return fail(c, http.StatusBadRequest, errValidation,
				"rate_limit must be between 1 and "+strconv.Itoa(settings.MaxRateLimit))
		}
		rate = *req.RateLimit
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
		Role:         role,
		Status:       model.StatusActive,
		APIKey:       apiKey,
		RateLimit:    rate,
	}
	if err := h.Users.Create(ctx, u); err != nil {
		if err == repository.ErrEmailExists {
			return fail(c, http.StatusBadRequest, errConflict, "email already registered")
		}
		return fail(c, http.StatusInternalServerError, errInternal, "create user failed")
	}

	actor := h.actor(c)
	h.Audit.Record(ctx, actor.ID, actor.Email, model.ActionUserCreated, "created "+u.Email, c.RealIP())
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user_id": u.ID})
}

type updateUserReq struct {
	Role                *string `json:"role"`
	Status              *string `json:"status"`
	RateLimit           *int    `json:"rate_limit"`
	ForcePasswordChange *bool   `json:"force_password_change"`
}

// UpdateUser applies allow-listed changes to a user row. The payload
// binds into pointer fields so absent keys are distinguishable from
// zero values.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id := c.Param("id")

	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, errValidation, "invalid body")
	}
	if req.Role != nil && *req.Role != model.RoleUser && *req.Role != model.RoleAdmin {
		return fail(c, http.StatusBadRequest, errValidation, "invalid role")
	}
	if req.Status != nil {
		switch *req.Status {
		case model.StatusActive, model.StatusSuspended, model.StatusDeactive:
		default:
			return fail(c, http.StatusBadRequest, errValidation, "invalid status")
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	target, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return fail(c, http.StatusNotFound, errNotFound, "user not found")
	}
	if req.RateLimit != nil {
		settings, err := h.Settings.Get(ctx)
		if err != nil {
			return fail(c, http.StatusInternalServerError, errInternal, "load settings failed")
		}
		if *req.RateLimit < 1 || *req.RateLimit > settings.MaxRateLimit {
			return fail(c, http.StatusBadRequest, errValidation,
				"rate_limit must be between 1 and "+strconv.Itoa(settings.MaxRateLimit))
		}
	}

	upd := repository.UserUpdate{
		Role:                req.Role,
		Status:              req.Status,
		RateLimit:           req.RateLimit,
		ForcePasswordChange: req.ForcePasswordChange,
	}
	if err := h.Users.Update(ctx, id, upd); err != nil {
		if err == repository.ErrEmptyUpdate {
			return fail(c, http.StatusBadRequest, errValidation, "no fields to update")
		}
		return fail(c, http.StatusInternalServerError, errInternal, "update user failed")
	}

	actor := h.actor(c)
	h.Audit.Record(ctx, actor.ID, actor.Email, model.ActionUserUpdated, "updated "+target.Email, c.RealIP())
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "User updated successfully"})
}

// DeleteUser removes a user row. Message and activity logs referencing
// the id are retained for the audit trail.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id := c.Param("id")
	actor := h.actor(c)
	if id == actor.ID {
		return fail(c, http.StatusBadRequest, errValidation, "cannot delete your own account")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	target, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return fail(c, http.StatusNotFound, errNotFound, "user not found")
	}
	if err := h.Users.Delete(ctx, id); err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "delete user failed")
	}

	h.Audit.Record(ctx, actor.ID, actor.Email, model.ActionUserDeleted, "deleted "+target.Email, c.RealIP())
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "User deleted successfully"})
}

// ResetPassword issues a generated temporary password and forces the
// user to change it on next login. The plaintext appears exactly once,
// in this response.
func (h *AdminHandler) ResetPassword(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	target, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return fail(c, http.StatusNotFound, errNotFound, "user not found")
	}

	temp, err := utils.GenerateStrongPassword(14)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "generate password failed")
	}
	hash, err := utils.HashPassword(temp, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "hash password failed")
	}
	if err := h.Users.UpdatePassword(ctx, id, hash, true); err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "update password failed")
	}

	actor := h.actor(c)
	h.Audit.Record(ctx, actor.ID, actor.Email, model.ActionPasswordReset, "reset password for "+target.Email, c.RealIP())
	return c.JSON(http.StatusOK, echo.Map{
		"success":            true,
		"temporary_password": temp,
		"message":            "Password reset successfully. User must change it on next login.",
	})
}

// ----- settings -----

// GetSettings returns the singleton settings record.
func (h *AdminHandler) GetSettings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Settings.Get(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "load settings failed")
	}
	return c.JSON(http.StatusOK, settingsPublic(s))
}

type updateSettingsReq struct {
	DefaultRateLimit   *int  `json:"default_rate_limit"`
	MaxRateLimit       *int  `json:"max_rate_limit"`
	EnableRegistration *bool `json:"enable_registration"`
	MaintenanceMode    *bool `json:"maintenance_mode"`
}

// UpdateSettings applies allow-listed changes. The default rate limit
// may never exceed the max that will be in effect after this update.
func (h *AdminHandler) UpdateSettings(c echo.Context) error {
	var req updateSettingsReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, errValidation, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	current, err := h.Settings.Get(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "load settings failed")
	}

	max := current.MaxRateLimit
	if req.MaxRateLimit != nil {
		if *req.MaxRateLimit < 1 {
			return fail(c, http.StatusBadRequest, errValidation, "max_rate_limit must be positive")
		}
		max = *req.MaxRateLimit
	}
	if req.DefaultRateLimit != nil && (*req.DefaultRateLimit < 1 || *req.DefaultRateLimit > max) {
		return fail(c, http.StatusBadRequest, errValidation,
			"default_rate_limit must be between 1 and "+strconv.Itoa(max))
	}

	upd := repository.SettingsUpdate{
		DefaultRateLimit:   req.DefaultRateLimit,
		MaxRateLimit:       req.MaxRateLimit,
		EnableRegistration: req.EnableRegistration,
		MaintenanceMode:    req.MaintenanceMode,
	}
	if err := h.Settings.Update(ctx, upd); err != nil {
		if err == repository.ErrEmptyUpdate {
			return fail(c, http.StatusBadRequest, errValidation, "no fields to update")
		}
		return fail(c, http.StatusInternalServerError, errInternal, "update settings failed")
	}

	actor := h.actor(c)
	h.Audit.Record(ctx, actor.ID, actor.Email, model.ActionSettingsUpdated, "settings updated", c.RealIP())

	s, err := h.Settings.Get(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "load settings failed")
	}
	return c.JSON(http.StatusOK, settingsPublic(s))
}

func settingsPublic(s model.Settings) echo.Map {
	return echo.Map{
		"default_rate_limit":  s.DefaultRateLimit,
		"max_rate_limit":      s.MaxRateLimit,
		"enable_registration": s.EnableRegistration,
		"maintenance_mode":    s.MaintenanceMode,
		"updated_at":          s.UpdatedAt,
	}
}

// ----- audit trail -----

// ListLogs pages through the activity trail, newest first.
// Supports ?limit= (default 50, max 200) and ?skip=.
func (h *AdminHandler) ListLogs(c echo.Context) error {
	limit, skip := 50, 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fail(c, http.StatusBadRequest, errValidation, "invalid limit")
		}
		limit = n
	}
	if raw := c.QueryParam("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fail(c, http.StatusBadRequest, errValidation, "invalid skip")
		}
		skip = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	logs, total, err := h.Activity.List(ctx, limit, skip)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "list logs failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"logs": activityLogList(logs), "total": total})
}

// ----- analytics -----

// Overview returns the headline counters for the admin dashboard.
func (h *AdminHandler) Overview(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	totalUsers, activeUsers, err := h.Users.CountByStatus(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "count users failed")
	}
	total, sent, failed, err := h.Messages.Totals(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "count messages failed")
	}
	rate := 0.0
	if total > 0 {
		rate = float64(sent) / float64(total) * 100
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users": echo.Map{"total": totalUsers, "active": activeUsers},
		"messages": echo.Map{
			"total": total, "sent": sent, "failed": failed,
			"success_rate": rate,
		},
	})
}

// MessagesPerDay returns daily dispatch volume for ?days= (default 7).
func (h *AdminHandler) MessagesPerDay(c echo.Context) error {
	days := queryDays(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	counts, err := h.Messages.CountPerDay(ctx, days)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "aggregate failed")
	}
	if counts == nil {
		counts = []repository.DayCount{}
	}
	return c.JSON(http.StatusOK, echo.Map{"days": days, "data": counts})
}

// UsersActivity returns per-user dispatch volume for ?days= (default 7).
func (h *AdminHandler) UsersActivity(c echo.Context) error {
	days := queryDays(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	counts, err := h.Messages.CountPerUser(ctx, days)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "aggregate failed")
	}
	if counts == nil {
		counts = []repository.UserCount{}
	}
	return c.JSON(http.StatusOK, echo.Map{"days": days, "data": counts})
}

func queryDays(c echo.Context) int {
	days := 7
	if raw := c.QueryParam("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 90 {
			days = n
		}
	}
	return days
}

// ----- system -----

// SystemStatus probes the engine and the database. Always 200: the
// probe results are the payload, not the response code.
func (h *AdminHandler) SystemStatus(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, echo.Map{
		"whatsapp_service": h.Engine.Health(ctx),
		"database":         h.Health(ctx),
		"timestamp":        time.Now().UTC(),
	})
}

// Sessions reports every user's engine session state. Sequential
// probes: the status call is cheap and admin traffic is rare.
func (h *AdminHandler) Sessions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, errInternal, "list users failed")
	}

	type sessionRow struct {
		UserID string                `json:"user_id"`
		Email  string                `json:"email"`
		State  gateway.SessionStatus `json:"session"`
	}
	out := make([]sessionRow, 0, len(users))
	for _, u := range users {
		out = append(out, sessionRow{
			UserID: u.ID,
			Email:  u.Email,
			State:  h.Engine.Status(c.Request().Context(), u.ID),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out, "total": len(out)})
}
