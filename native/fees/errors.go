package fees

import "errors"

var (
	// ErrInvalidConfig marks out-of-range basis points, non-ascending
	// thresholds, mismatched bracket lengths or negative base fees.
	ErrInvalidConfig = errors.New("fees: invalid config")
	// ErrTransferFailed wraps failures propagated from the external asset
	// transfer service; the enclosing call aborts with no state change.
	ErrTransferFailed = errors.New("fees: transfer failed")
)
