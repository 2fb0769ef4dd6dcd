package models

import "errors"

// Field validation errors.
var (
	ErrInvalidHost   = errors.New("must be a dotted-quad IPv4 address")
	ErrInvalidPort   = errors.New("must be an integer between 1 and 65535")
	ErrEmptyUsername = errors.New("username is required")
	ErrEmptyPassword = errors.New("password is required")
)
