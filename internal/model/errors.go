package model

import "errors"

var (
	// ErrInvalidCredentials is returned for a failed user or admin login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when an admin token is missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for a missing chapter.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest is returned when a required field is missing or invalid.
	ErrBadRequest = errors.New("bad request")
)
