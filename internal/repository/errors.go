// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver error strings themselves.
package repository

import "errors"

// ErrEmailExists is returned when an insert violates the unique email
// constraint. Handlers translate it into an HTTP 400 duplicate_email
// response.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a lookup or targeted update matches no
// row. Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrEmptyUpdate is returned when a partial update carries no fields.
// Handlers translate it into an HTTP 400 response rather than issuing
// a no-op UPDATE.
var ErrEmptyUpdate = errors.New("no fields to update")
