package token

import "errors"

var (
	// ErrNotFound covers both deleted and expired tokens; readers cannot tell them apart.
	ErrNotFound = errors.New("token not found")

	ErrInvalidArgument = errors.New("invalid argument")
)
