package model

import "time"

// Role values stored in users.role. Exactly one admin row is
// created at bootstrap; all self-service registrations get
// RoleUser.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account status values stored in users.status. Suspended and
// deactive accounts are rejected at authentication time before any
// session or dispatch logic runs.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDeactive  = "deactive"
)

// User represents an application user record as stored in the
// `users` table. Identifiers are UUID strings so they can be
// generated by the application before insert. The API key is a
// high-entropy token owned 1:1 by the user and is replaced
// atomically on regeneration; the previous value dies immediately.
//
// Fields:
//  ID                  – primary key, UUID string.
//  Email               – unique email address.
//  PasswordHash        – bcrypt hashed password.
//  Role                – "user" or "admin".
//  Status              – "active", "suspended" or "deactive".
//  APIKey              – url-safe random token for the query-string send path.
//  RateLimit           – allowed messages per trailing hour.
//  ForcePasswordChange – set by an admin reset, cleared by the next
//                        successful self password change.
//  CreatedAt           – timestamp of creation.
type User struct {
	ID                  string    // users.id
	Email               string    // users.email
	PasswordHash        string    // users.password_hash
	Role                string    // users.role
	Status              string    // users.status
	APIKey              string    // users.api_key
	RateLimit           int       // users.rate_limit
	ForcePasswordChange bool      // users.force_password_change
	CreatedAt           time.Time // users.created_at
}
