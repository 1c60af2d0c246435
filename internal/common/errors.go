// Package common holds the error taxonomy shared by every layer of the API.
// Callers should match these values with errors.Is.
package common

import "errors"

var (
	// Input errors.
	ErrValidation = errors.New("validation error")

	// Authentication / authorization errors.
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("forbidden")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Throttling and everything unexpected.
	ErrRateLimited = errors.New("rate limited")
	ErrInternal    = errors.New("internal error")
)
