package registry

import "errors"

// Hard failure conditions from type resolution. Unlike expression
// evaluation failures, which degrade to unresolved values, these indicate
// an inconsistent typedef graph.
var (
	ErrUnknownType   = errors.New("unknown type")
	ErrRecursiveType = errors.New("recursive loop while evaluating types")
)
