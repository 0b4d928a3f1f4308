package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wagate/wagate/internal/model"
)

// fail writes the structured error envelope every failure uses: a
// stable machine-checkable category plus a human-readable message.
func fail(c echo.Context, status int, category, message string) error {
	return c.JSON(status, echo.Map{"error": category, "message": message})
}

// Failure categories. These are part of the API contract; clients
// switch on them, not on the message text.
const (
	errAuthentication     = "authentication_failed"
	errAuthorization      = "authorization_failed"
	errAccountDeactivated = "account_deactivated"
	errValidation         = "validation_failed"
	errNotFound           = "not_found"
	errConflict           = "conflict"
	errServiceUnavailable = "service_unavailable"
	errDispatchFailed     = "dispatch_failed"
	errRateLimited        = "rate_limited"
	errMaintenance        = "maintenance_mode"
	errInternal           = "internal_error"
)

// UserPublic is the externally visible projection of a user row. The
// password hash never leaves the server and there is no plaintext
// shadow field: the only moment a password is visible is the one-time
// temporary_password in an admin reset response.
type UserPublic struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Role                string    `json:"role"`
	Status              string    `json:"status"`
	APIKey              string    `json:"api_key"`
	RateLimit           int       `json:"rate_limit"`
	ForcePasswordChange bool      `json:"force_password_change"`
	CreatedAt           time.Time `json:"created_at"`
}

func publicUser(u model.User) UserPublic {
	return UserPublic{
		ID:                  u.ID,
		Email:               u.Email,
		Role:                u.Role,
		Status:              u.Status,
		APIKey:              u.APIKey,
		RateLimit:           u.RateLimit,
		ForcePasswordChange: u.ForcePasswordChange,
		CreatedAt:           u.CreatedAt,
	}
}

// MessageLogPublic is the wire shape of one message-log row.
type MessageLogPublic struct {
	ID             string    `json:"id"`
	ReceiverNumber string    `json:"receiver_number"`
	MessageBody    string    `json:"message_body"`
	Status         string    `json:"status"`
	Source         string    `json:"source"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// messageLogList converts rows for a JSON response. A nil slice
// becomes an empty array, never null.
func messageLogList(rows []model.MessageLog) []MessageLogPublic {
	out := make([]MessageLogPublic, 0, len(rows))
	for _, m := range rows {
		out = append(out, MessageLogPublic{
			ID:             m.ID,
			ReceiverNumber: m.ReceiverNumber,
			MessageBody:    m.MessageBody,
			Status:         m.Status,
			Source:         m.Source,
			Error:          m.Error,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out
}

// ActivityLogPublic is the wire shape of one audit-trail row.
type ActivityLogPublic struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserEmail string    `json:"user_email"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

func activityLogList(rows []model.ActivityLog) []ActivityLogPublic {
	out := make([]ActivityLogPublic, 0, len(rows))
	for _, a := range rows {
		out = append(out, ActivityLogPublic{
			ID:        a.ID,
			UserID:    a.UserID,
			UserEmail: a.UserEmail,
			Action:    a.Action,
			Details:   a.Details,
			IPAddress: a.IPAddress,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}
