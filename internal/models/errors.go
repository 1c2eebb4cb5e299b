package models

import "errors"

// Sentinel error kinds. Services wrap these with fmt.Errorf("...: %w", Err...)
// and the HTTP layer maps them to status codes with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limited")
	ErrProvider           = errors.New("external provider error")
	ErrParseFailed        = errors.New("parse failed")
	ErrInsufficientShares = errors.New("insufficient shares")
)
