package peripheral

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInUse         = errors.New("peripheral already has an owner")
)
