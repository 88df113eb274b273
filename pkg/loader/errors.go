package loader

import "errors"

// Loader error kinds (§7 kind 7): missing id, duplicate id, Init of an
// existing context key, Update of a missing context key, and
// malformed nodes.
var (
	ErrMissingID      = errors.New("loader: storylet missing required 'id' field")
	ErrMalformedNode  = errors.New("loader: malformed storylets entry")
	ErrMalformedField = errors.New("loader: malformed field value")
	ErrDuplicateID    = errors.New("loader: duplicate storylet id")
)
