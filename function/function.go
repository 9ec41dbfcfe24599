// Package function implements the function-task capability of railflow:
// plain Go functions exposed under a (source, name) pair, with schema
// validated arguments and consistent error codes.
//
// Functions are registered up front in a Registry that is handed to the
// engine, so function tasks are resolved without reflection or dynamic
// loading. A config entry
//
//	functions:
//	  blur_check:
//	    task: is_blurry
//	    source: vision/quality
//
// resolves to the function named "is_blurry" registered under the source
// "vision.quality" ("/" and "." separators are equivalent).
package function

import (
	"context"
	"fmt"

	"github.com/hupe1980/railflow/internal/util"
)

// Function is a named callable usable as a condition or action task.
type Function interface {
	// Name returns the identifier tasks refer to.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Parameters returns the minimal JSON schema of the accepted params.
	// A nil schema accepts anything.
	Parameters() map[string]any

	// Call executes the function with the task params as arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes reported in *Error.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// Error represents errors that occur during function execution.
type Error struct {
	Function string `json:"function"`          // Name of the function that failed
	Message  string `json:"message"`           // Error message
	Code     string `json:"code"`              // Error code for categorization
	Details  any    `json:"details,omitempty"` // Additional error details
	Err      error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("function error [%s] in %s: %s", e.Code, e.Function, e.Message)
	}
	return fmt.Sprintf("function error in %s: %s", e.Function, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new Error with the specified details.
func NewError(function, message, code string) *Error {
	return &Error{
		Function: function,
		Message:  message,
		Code:     code,
	}
}

// Func is a generic adapter that exposes a plain Go function as a Function.
//
// Call validates arguments against the declared schema before invoking the
// wrapped function, and normalizes failures into *Error:
//
//	validation failure              -> *Error{Code: CodeValidation}
//	*Error returned by fn           -> forwarded unchanged
//	other error                     -> *Error{Code: CodeExecution}, wrapping it
//
// A Func has no mutable state and is safe for concurrent use.
type Func struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunc constructs a Func from an explicit schema and implementation.
//
// Example:
//
//	wordCount := function.NewFunc(
//	  "word_count",
//	  "Count the words of a text",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "text": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"text"},
//	  },
//	  func(_ context.Context, args map[string]any) (any, error) {
//	    return len(strings.Fields(args["text"].(string))), nil
//	  },
//	)
func NewFunc(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *Func {
	return &Func{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFuncFromStruct derives the parameter schema from a struct using
// reflection (see util.CreateSchema).
func NewFuncFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *Func {
	return NewFunc(name, description, util.CreateSchema(structType), fn)
}

// Name implements Function.
func (f *Func) Name() string { return f.name }

// Description implements Function.
func (f *Func) Description() string { return f.description }

// Parameters implements Function.
func (f *Func) Parameters() map[string]any { return f.parameters }

// Call implements Function.
func (f *Func) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, f.parameters); err != nil {
		return nil, &Error{
			Function: f.name,
			Message:  fmt.Sprintf("parameter validation failed: %v", err),
			Code:     CodeValidation,
			Details:  err,
			Err:      err,
		}
	}

	result, err := f.fn(ctx, args)
	if err != nil {
		if fnErr, ok := err.(*Error); ok {
			return nil, fnErr
		}
		return nil, &Error{
			Function: f.name,
			Message:  err.Error(),
			Code:     CodeExecution,
			Err:      err,
		}
	}

	return result, nil
}
