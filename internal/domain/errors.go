package domain

import "fmt"

// InsufficientDataError reports a bar series too short for the requested
// parameter set. The engine requires slow_period + 5 bars.
type InsufficientDataError struct {
	Required  int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d bars, have %d", e.Required, e.Available)
}

// InvalidParametersError reports a parameter set that fails validation.
type InvalidParametersError struct {
	Field  string
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters: %s %s", e.Field, e.Reason)
}

// InvalidStrategyError reports a strategy that failed resolution or
// validation. Resolution fails closed: an invalid strategy never runs.
type InvalidStrategyError struct {
	Name   string
	Reason string
}

func (e *InvalidStrategyError) Error() string {
	return fmt.Sprintf("invalid strategy %q: %s", e.Name, e.Reason)
}

// ExecutionFailedError reports a fault during bar iteration. The run that
// raised it produced no partial result.
type ExecutionFailedError struct {
	Detail string
	Err    error // underlying cause, may be nil
}

func (e *ExecutionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backtest execution failed: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("backtest execution failed: %s", e.Detail)
}

func (e *ExecutionFailedError) Unwrap() error { return e.Err }

// TrialFailedError marks a single failed optimizer trial. It is absorbed
// inside the optimizer as a -Inf score and never surfaces to callers.
type TrialFailedError struct {
	Trial int
	Err   error
}

func (e *TrialFailedError) Error() string {
	return fmt.Sprintf("trial %d failed: %v", e.Trial, e.Err)
}

func (e *TrialFailedError) Unwrap() error { return e.Err }
