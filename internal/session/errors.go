package session

import "errors"

var (
	// ErrInvalidCredentials is shown to the user as is.
	ErrInvalidCredentials = errors.New("Invalid username or password")

	ErrUsernameExists   = errors.New("Username already exists")
	ErrPasswordMismatch = errors.New("Passwords do not match")
	ErrFieldsRequired   = errors.New("Please fill in all required fields")
)

const (
	msgLoginFailed    = "An error occurred during login"
	msgRegisterFailed = "An error occurred during registration"
)
