package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrCountryNotFound = errors.New("country not found")
)
