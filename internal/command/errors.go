package command

import "errors"

// Package errors.
var (
	ErrInvalidPosition = errors.New("command: position must be between 0 and 100")
	ErrNotPositionable = errors.New("command: device type does not accept positions")
)
