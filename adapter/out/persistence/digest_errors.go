package persistence

import (
	"errors"

	"digest_server/core/port/out"
)

// Common persistence errors
var (
	ErrNotFound     = out.ErrNotFound
	ErrInvalidInput = errors.New("invalid input")
)
