package common

import (
	"errors"

	"jobtrack_worker/pkg/resilience"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrBadRequest        = errors.New("bad request")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCircuitOpen       = resilience.ErrCircuitOpen
)
