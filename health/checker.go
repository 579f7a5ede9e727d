package health

import (
	"context"
	"time"
)

// Status is the outcome of one check. Higher values are worse.
type Status int

const (
	// StatusOK means the component is ready for use.
	StatusOK Status = iota
	// StatusWarn means the component is missing or impaired but buildr
	// still works without it.
	StatusWarn
	// StatusFail means the component blocks normal use.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol is the marker printed in front of a report line.
func (s Status) Symbol() string {
	switch s {
	case StatusOK:
		return "✓"
	case StatusWarn:
		return "!"
	default:
		return "✗"
	}
}

// Result is what a Checker found.
type Result struct {
	Status Status

	// Message is printed after the check name, e.g. "ruby 3.3.0" or
	// "not installed".
	Message string

	// Hint is collected into the report's tips when Status is not OK.
	Hint string

	// Details is extra data for debug logging.
	Details map[string]any

	// Duration is filled in by the Aggregator.
	Duration time.Duration

	Error error
}

// Pass returns an OK result.
func Pass(message string) Result {
	return Result{Status: StatusOK, Message: message}
}

// Warn returns a result for something optional that is missing or impaired.
func Warn(message string) Result {
	return Result{Status: StatusWarn, Message: message}
}

// Fail returns a result for something that blocks normal use.
func Fail(message string, err error) Result {
	return Result{Status: StatusFail, Message: message, Error: err}
}

// WithHint sets the remediation hint.
func (r Result) WithHint(hint string) Result {
	r.Hint = hint
	return r
}

// WithDetails sets debug details.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker inspects one part of the environment.
type Checker interface {
	// Name is the label printed in the report.
	Name() string

	Check(ctx context.Context) Result
}

// Func adapts a function to a Checker; see Named.
type Func func(context.Context) Result

type namedFunc struct {
	name string
	fn   Func
}

// Named returns a Checker called name that runs fn.
func Named(name string, fn Func) Checker {
	return namedFunc{name: name, fn: fn}
}

func (n namedFunc) Name() string { return n.name }

func (n namedFunc) Check(ctx context.Context) Result { return n.fn(ctx) }
