package models

import "fmt"

// CollectionReason classifies why a collector failed
type CollectionReason string

const (
	ReasonTimeout          CollectionReason = "timeout"
	ReasonPermissionDenied CollectionReason = "permission_denied"
	ReasonUnavailable      CollectionReason = "unavailable"
	ReasonUnknown          CollectionReason = "unknown"
)

// CollectionError is returned by a collector, or synthesized by the sampler on timeout
type CollectionError struct {
	Family  MetricFamily
	Reason  CollectionReason
	Message string
	Err     error // underlying cause, may be nil
}

func (e *CollectionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return fmt.Sprintf("%s collection failed: %s", e.Family, e.Reason)
	}
	return fmt.Sprintf("%s collection failed (%s): %s", e.Family, e.Reason, msg)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// Is matches on reason so callers can test against the sentinel values below.
// A sentinel with an empty family matches any family.
func (e *CollectionError) Is(target error) bool {
	t, ok := target.(*CollectionError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason && (t.Family == "" || t.Family == e.Family)
}

// NewCollectionError builds a CollectionError with a formatted message
func NewCollectionError(family MetricFamily, reason CollectionReason, format string, args ...any) *CollectionError {
	return &CollectionError{
		Family:  family,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

var (
	ErrTimeout          = &CollectionError{Reason: ReasonTimeout}
	ErrPermissionDenied = &CollectionError{Reason: ReasonPermissionDenied}
	ErrUnavailable      = &CollectionError{Reason: ReasonUnavailable}
	ErrCollectUnknown   = &CollectionError{Reason: ReasonUnknown}
)

// QueryReason classifies read-side failures
type QueryReason string

const (
	ReasonInsufficientData QueryReason = "insufficient_data"
	ReasonUnknownFamily    QueryReason = "unknown_family"
	ReasonUnknownField     QueryReason = "unknown_field"
)

// QueryError is returned to readers; it is never retried internally
type QueryError struct {
	Reason QueryReason
	Family MetricFamily
	Field  string
}

func (e *QueryError) Error() string {
	switch e.Reason {
	case ReasonInsufficientData:
		if e.Field != "" {
			return fmt.Sprintf("insufficient data for %s %s", e.Family, e.Field)
		}
		return fmt.Sprintf("insufficient data for %s", e.Family)
	case ReasonUnknownFamily:
		return fmt.Sprintf("unknown metric family %q", e.Family)
	case ReasonUnknownField:
		return fmt.Sprintf("unknown field %q for %s", e.Field, e.Family)
	}
	return fmt.Sprintf("query failed: %s", e.Reason)
}

func (e *QueryError) Is(target error) bool {
	t, ok := target.(*QueryError)
	return ok && t.Reason == e.Reason
}

var (
	ErrInsufficientData = &QueryError{Reason: ReasonInsufficientData}
	ErrUnknownFamily    = &QueryError{Reason: ReasonUnknownFamily}
	ErrUnknownField     = &QueryError{Reason: ReasonUnknownField}
)

// LifecycleReason classifies sampler misuse
type LifecycleReason string

const (
	ReasonAlreadyStarted LifecycleReason = "already_started"
	ReasonNotRunning     LifecycleReason = "not_running"
)

// LifecycleError reports a programmer error such as a double start
type LifecycleError struct {
	Reason LifecycleReason
}

func (e *LifecycleError) Error() string {
	switch e.Reason {
	case ReasonAlreadyStarted:
		return "sampler is already running"
	case ReasonNotRunning:
		return "sampler is not running"
	}
	return string(e.Reason)
}

func (e *LifecycleError) Is(target error) bool {
	t, ok := target.(*LifecycleError)
	return ok && t.Reason == e.Reason
}

var (
	ErrAlreadyStarted = &LifecycleError{Reason: ReasonAlreadyStarted}
	ErrNotRunning     = &LifecycleError{Reason: ReasonNotRunning}
)
