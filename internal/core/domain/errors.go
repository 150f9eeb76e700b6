package domain

import (
	"errors"
	"fmt"
)

// ErrTableNotFound is returned by the schema catalog when a named table
// does not exist in the backend.
var ErrTableNotFound = errors.New("table not found")

// UnknownToolError reports that the model named a tool that is not in the
// registry. Non-fatal: the loop folds it into an observation.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.Name)
}

// ToolExecutionError wraps a failure raised by a registered tool while
// running. Non-fatal: the loop folds it into an observation.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// DatabaseError carries the backend's error message verbatim. The message
// is what flows into the recovery advisor, so it must not be rewritten.
type DatabaseError struct {
	Message string
	Err     error
}

func (e *DatabaseError) Error() string { return e.Message }

func (e *DatabaseError) Unwrap() error { return e.Err }

// ModelCommunicationError reports that the language-model backend is
// unreachable or rejected the request. Fatal to the current run.
type ModelCommunicationError struct {
	Err error
}

func (e *ModelCommunicationError) Error() string {
	return fmt.Sprintf("model backend: %v", e.Err)
}

func (e *ModelCommunicationError) Unwrap() error { return e.Err }
