package model

import "time"

// Action tags recorded in activity_logs.action. The set is closed;
// free-form context goes into the details column.
const (
	ActionUserRegistered       = "USER_REGISTERED"
	ActionUserLogin            = "USER_LOGIN"
	ActionUserCreated          = "USER_CREATED"
	ActionUserUpdated          = "USER_UPDATED"
	ActionUserDeleted          = "USER_DELETED"
	ActionPasswordReset        = "PASSWORD_RESET"
	ActionPasswordChanged      = "PASSWORD_CHANGED"
	ActionAPIKeyRegenerated    = "API_KEY_REGENERATED"
	ActionSettingsUpdated      = "SETTINGS_UPDATED"
	ActionWhatsAppInitialized  = "WHATSAPP_INITIALIZED"
	ActionWhatsAppDisconnected = "WHATSAPP_DISCONNECTED"
)

// ActivityLog is an append-only audit record as stored in the
// `activity_logs` table. The actor's email is snapshotted so the
// trail stays readable after the user row is deleted.
//
// Fields:
//  ID        – primary key, UUID string.
//  UserID    – actor's user id.
//  UserEmail – actor's email at the time of the action.
//  Action    – enumerated action tag.
//  Details   – free-text description.
//  IPAddress – request origin, when known.
//  CreatedAt – timestamp of the action.
type ActivityLog struct {
	ID        string    // activity_logs.id
	UserID    string    // activity_logs.user_id
	UserEmail string    // activity_logs.user_email
	Action    string    // activity_logs.action
	Details   string    // activity_logs.details
	IPAddress string    // activity_logs.ip_address
	CreatedAt time.Time // activity_logs.created_at
}
