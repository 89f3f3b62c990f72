// Package atlaserr holds the error kinds shared across Atlas's packages,
// per the error-handling design: TaskExecutionError and StoreError never
// abort the dispatcher (inside Run they fold into a FAILED task; in the
// dispatcher's own bookkeeping they are logged); InvariantViolation and
// ConfigurationError are fatal and abort startup or the offending call.
package atlaserr

import "fmt"

// TaskExecutionError wraps a provider or store error with a reference to
// the offending task. Caught by the dispatcher, logged, never fatal.
type TaskExecutionError struct {
	TaskID   string
	TaskType string
	Err      error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s (%s): %v", e.TaskID, e.TaskType, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

// NewTaskExecutionError wraps err with the identity of the task that raised
// it during Run.
func NewTaskExecutionError(taskID, taskType string, err error) *TaskExecutionError {
	return &TaskExecutionError{TaskID: taskID, TaskType: taskType, Err: err}
}

// StoreError wraps any persistence failure. It surfaces as a
// TaskExecutionError when raised inside Run. Raised by the executor's own
// retry or state-marking calls it is logged and the loop continues; raised
// while loading a graph it is returned and aborts the run.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err with the store operation that failed.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// InvariantViolation marks a caller error that violates an invariant the
// system assumes always holds, e.g. persisting an already-persisted task or
// running an unrecognised action. Fatal.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.Msg }

// NewInvariantViolation builds an InvariantViolation with the given message.
func NewInvariantViolation(msg string) *InvariantViolation {
	return &InvariantViolation{Msg: msg}
}

// ConfigurationError marks a structural problem discovered while loading or
// wiring a graph, such as an unknown type tag read back from the store.
// Fatal, aborts startup.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Msg }

// NewConfigurationError builds a ConfigurationError with the given message.
func NewConfigurationError(msg string) *ConfigurationError {
	return &ConfigurationError{Msg: msg}
}
