package engine

import "errors"

var (
	// ErrConfiguration indicates an invalid graph description: unknown
	// node prefix, duplicate name, unresolved argument, arity mismatch,
	// or element-width mismatch.
	ErrConfiguration = errors.New("engine: invalid configuration")
	// ErrShape indicates disagreeing buffer or pair-list sizes.
	ErrShape = errors.New("engine: shape mismatch")
	// ErrNumerical indicates a non-finite force or position. The engine
	// state is invalid once this is returned.
	ErrNumerical = errors.New("engine: non-finite value")
	// ErrRegistry indicates a node factory prefix registered twice.
	ErrRegistry = errors.New("engine: duplicate factory registration")
	// ErrQuery indicates a named value the node does not expose.
	ErrQuery = errors.New("engine: unknown value name")
)
