package domain

import "fmt"

// StructuralError means the source table does not have the expected shape.
type StructuralError struct {
	Reason string
	Cause  error
}

func (e *StructuralError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("structural: %s: %v", e.Reason, e.Cause)
	}
	return "structural: " + e.Reason
}

func (e *StructuralError) Unwrap() error {
	return e.Cause
}

// NewStructuralError builds a StructuralError without a cause.
func NewStructuralError(format string, args ...any) *StructuralError {
	return &StructuralError{Reason: fmt.Sprintf(format, args...)}
}

// EmptySeriesError is returned when an entity has no usable observation.
type EmptySeriesError struct {
	Entity string
}

func (e *EmptySeriesError) Error() string {
	return fmt.Sprintf("entity %s has no observations", e.Entity)
}

// EstimationError wraps a smoothing or regression failure for one entity and method.
type EstimationError struct {
	Entity string
	Method string
	Cause  error
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("%s estimate for %s: %v", e.Method, e.Entity, e.Cause)
}

func (e *EstimationError) Unwrap() error {
	return e.Cause
}

// MisuseError reports a collaborator called out of order.
type MisuseError struct {
	Op     string
	Reason string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
