package persistence

import (
	"errors"

	"jobtrack_worker/core/service/common"
)

// Common persistence errors. NotFound and Duplicate alias the service-level
// sentinels so callers can match with errors.Is without importing this package.
var (
	ErrNotFound     = common.ErrNotFound
	ErrDuplicate    = common.ErrDuplicate
	ErrInvalidInput = errors.New("invalid input")
)
