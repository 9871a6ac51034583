package access

import "errors"

var (
	// ErrUnauthorized marks calls from accounts lacking the required role.
	ErrUnauthorized = errors.New("access: unauthorized")
	// ErrPaused is returned by every state-mutating entry point while the
	// pause flag is set.
	ErrPaused = errors.New("access: contract paused")
)
