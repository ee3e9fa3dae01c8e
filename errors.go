package asyncexec

import (
	"errors"
	"fmt"
)

const (
	opExecute  = "execute"
	opExecute2 = "execute2"
	opExecute3 = "execute3"
	opExecuteN = "execute_n"
	opRun      = "run"
	opRetry    = "execute_retryable"
)

var (
	// ErrNilComputation is returned when a nil computation or action is passed.
	ErrNilComputation = errors.New("asyncexec: computation is nil")

	// ErrNilMerge is returned when a nil merge function is passed.
	ErrNilMerge = errors.New("asyncexec: merge function is nil")

	// ErrNotExecuted completes a handle whose job was discarded by the
	// executor without running, typically because its context ended first.
	ErrNotExecuted = errors.New("asyncexec: computation was not executed")
)

// ExecutionError is the only error kind returned by the orchestrator and
// the retry executor. Cause is the original failure.
type ExecutionError struct {
	Op    string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("asyncexec: %s: %v", e.Op, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// IsExecutionError reports whether err is or wraps an *ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// wrap normalizes err into an *ExecutionError. An *ExecutionError coming back
// from a nested call is returned as is.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*ExecutionError); ok {
		return ee
	}
	return &ExecutionError{Op: op, Cause: err}
}
