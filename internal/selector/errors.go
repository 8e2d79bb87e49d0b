package selector

import "errors"

var (
	// ErrEmptyPool is returned when drawing from a pool without items.
	ErrEmptyPool = errors.New("pool is empty")
	// ErrUnknownPool is returned by Registry for keys it has no pool for.
	ErrUnknownPool = errors.New("unknown pool")
)
