package core

import "errors"

// Engine error taxonomy. All are terminal for the call that raised them; the
// engine never retries internally. Callers discriminate with errors.Is and
// decide presentation themselves.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
)
