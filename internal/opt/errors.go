package opt

import "fmt"

// ErrConfig matches any ConfigError. Use errors.Is(err, ErrConfig).
var ErrConfig = &ConfigError{}

// ErrState matches any StateError. Use errors.Is(err, ErrState).
var ErrState = &StateError{}

// ConfigError reports an invalid constructor parameter. Policies fail with it
// at construction time so a bad schedule never starts training.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid schedule config"
	}
	return fmt.Sprintf("invalid schedule config: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

func configErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StateError reports a lifecycle event arriving out of order, or a clock
// that ran past what the policy planned for.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	if e.Op == "" {
		return "inconsistent scheduler state"
	}
	return fmt.Sprintf("inconsistent scheduler state in %s: %s", e.Op, e.Reason)
}

func (e *StateError) Is(target error) bool {
	_, ok := target.(*StateError)
	return ok
}
