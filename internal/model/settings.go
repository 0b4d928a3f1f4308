package model

import "time"

// Default values used when the settings row is created lazily on
// first read.
const (
	DefaultRateLimit    = 30
	DefaultMaxRateLimit = 100
)

// Settings is the singleton configuration record stored in the
// `settings` table under a fixed primary key. It is created with
// defaults inside a transaction on first access so concurrent
// first reads cannot produce duplicate rows.
//
// Fields:
//  DefaultRateLimit   – messages/hour applied to new registrations.
//  MaxRateLimit       – upper bound for any user's rate limit.
//  EnableRegistration – whether self-service registration is open.
//  MaintenanceMode    – rejects non-admin logins while enabled.
//  UpdatedAt          – timestamp of the last update.
type Settings struct {
	DefaultRateLimit   int       // settings.default_rate_limit
	MaxRateLimit       int       // settings.max_rate_limit
	EnableRegistration bool      // settings.enable_registration
	MaintenanceMode    bool      // settings.maintenance_mode
	UpdatedAt          time.Time // settings.updated_at
}
