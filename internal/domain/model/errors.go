package model

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidSettings = errors.New("invalid tournament settings")
	ErrUnknownMetric   = errors.New("unknown metric")
	ErrInvalidScore    = errors.New("invalid score")
)
