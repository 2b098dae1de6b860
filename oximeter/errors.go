package oximeter

import (
	"fmt"
	"time"
)

// DiscoveryTimeoutError indicates the target device was not discovered within
// the scan timeout. Non-fatal: the session stays disconnected and the caller
// may retry.
type DiscoveryTimeoutError struct {
	Target  string
	Timeout time.Duration
}

func (e *DiscoveryTimeoutError) Error() string {
	return fmt.Sprintf("device %q not found within %s", e.Target, e.Timeout)
}

// Is allows errors.Is against a zero-value *DiscoveryTimeoutError
func (e *DiscoveryTimeoutError) Is(target error) bool {
	_, ok := target.(*DiscoveryTimeoutError)
	return ok
}

// ErrDiscoveryTimeout is the sentinel for errors.Is checks.
var ErrDiscoveryTimeout = &DiscoveryTimeoutError{}
