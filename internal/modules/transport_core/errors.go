package transportcore

import (
	"errors"
	"fmt"

	"github.com/soren-m/now_playing/pkg/np"
)

// ErrNotInitialized is returned by every operation invoked before
// Initialize succeeds. Its text is the fixed last-error message.
var ErrNotInitialized = errors.New("not initialized")

// ErrUnknownButton is returned by setters for button values without
// plumbing (record, channel-up, channel-down) or out of range.
var ErrUnknownButton = errors.New("unknown button type")

// DriverError wraps a failure reported by the native backend. The message is
// captured verbatim from the driver.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

func driverErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DriverError{Op: op, Err: err}
}

// Code translates an operation error into the flat-surface status code.
// Callers should treat any negative value as failure and consult the last
// error string, not branch on the magnitude.
func Code(err error) int {
	var derr *DriverError
	switch {
	case err == nil:
		return np.StatusOK
	case errors.Is(err, ErrNotInitialized), errors.Is(err, ErrUnknownButton):
		return np.StatusNotInitialized
	case errors.As(err, &derr):
		return np.StatusNativeError
	default:
		return np.StatusInternalError
	}
}
