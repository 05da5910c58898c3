package precondition

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when a preconditioner is applied, transposed
// or queried before a successful Initialize.
var ErrNotInitialized = errors.New("preconditioner is not initialized")

// DimensionError reports a vector whose index layout does not match the
// operator the preconditioner was built for. Vector names the offending
// argument, "src" or "dst".
type DimensionError struct {
	Op     string
	Vector string
	Want   string
	Got    string
}

func (e *DimensionError) Error() string {
	name := e.Vector
	if name == "" {
		name = "vector"
	}
	return fmt.Sprintf("%s: %s layout %s does not match operator layout %s", e.Op, name, e.Got, e.Want)
}

// ConfigError reports rejected initialization parameters.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid preconditioner configuration: " + e.Reason
}

// BackendError wraps a failure inside a solver kernel.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *BackendError) Unwrap() error { return e.Err }
