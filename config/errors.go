package config

import "errors"

// ErrInvalidConfig is returned for any configuration that cannot be used:
// unreadable or malformed files, bad environment values and failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")
