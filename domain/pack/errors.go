package pack

import "errors"

// ErrInvalidPack is returned when a pack has no name.
var ErrInvalidPack = errors.New("invalid pack")
