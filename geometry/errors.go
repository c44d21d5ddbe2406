package geometry

import "fmt"

// ValidationError reports a geometry that cannot be unrolled.
type ValidationError struct {
	Level  string
	Field  string
	Value  int64
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Level == "" {
		return fmt.Sprintf("invalid %s %d: %s", e.Field, e.Value, e.Reason)
	}

	return fmt.Sprintf("%s: invalid %s %d: %s",
		e.Level, e.Field, e.Value, e.Reason)
}
