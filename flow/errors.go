package flow

import (
	"errors"
	"fmt"
)

// ErrReference matches every *ReferenceError via errors.Is.
var ErrReference = errors.New("unresolved reference")

// ReferenceError reports a named action, condition or flow that is absent
// from its table.
type ReferenceError struct {
	Kind string // "action", "condition" or "flow"
	Name string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// Is reports whether target is ErrReference.
func (e *ReferenceError) Is(target error) bool { return target == ErrReference }
