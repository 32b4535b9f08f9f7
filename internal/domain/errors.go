package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Interaction
// rejections (cooldown, daily limit) are NOT errors; they come back as
// InteractionResult reasons.

var (
	// Lookup errors
	ErrChildNotFound = errors.New("child not found")
	ErrGroupNotFound = errors.New("group not found")
	ErrUnknownAction = errors.New("unknown action")

	// Mutation errors
	ErrGroupNotEmpty = errors.New("group still has children")
	ErrInvalidInput  = errors.New("invalid input")

	// Auth errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
)
