package scenario

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid scenario config")
	ErrNoCooperators = errors.New("world has no cooperators")
	ErrGoalUnset     = errors.New("cooperator goal is not set")
	ErrUnknownRole   = errors.New("unknown agent role")
)
