package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoMatchingFlow is matched by *NoMatchingFlowError.
	ErrNoMatchingFlow = errors.New("no matching flow")

	// ErrNoModel is returned when a prompt task is dispatched by an engine
	// constructed without a model.
	ErrNoModel = errors.New("no model configured")
)

// NoMatchingFlowError reports that no flow of a table selected an action
// for the input.
type NoMatchingFlowError struct {
	Input string
	Flows []string // evaluated flow names, in order
}

func (e *NoMatchingFlowError) Error() string {
	if len(e.Flows) == 0 {
		return fmt.Sprintf("no matching flow for input %q: flow table is empty", e.Input)
	}
	return fmt.Sprintf("no matching flow for input %q (evaluated: %s)", e.Input, strings.Join(e.Flows, ", "))
}

// Is reports whether target is ErrNoMatchingFlow.
func (e *NoMatchingFlowError) Is(target error) bool { return target == ErrNoMatchingFlow }

// DispatchError is returned for a task whose type the engine cannot execute.
type DispatchError struct {
	Role string // "action" or "condition"
	Type string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("cannot dispatch %s task of type %q", e.Role, e.Type)
}

// TaskNotFoundError is returned when a function task names a function that
// is not registered.
type TaskNotFoundError struct {
	Role   string
	Source string
	Name   string
}

func (e *TaskNotFoundError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s function %q not found", e.Role, e.Name)
	}
	return fmt.Sprintf("%s function %q not found in source %q", e.Role, e.Name, e.Source)
}
