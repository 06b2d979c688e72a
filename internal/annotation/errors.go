package annotation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrStaleSelection is returned when an asynchronous result arrives for a
// dialog selection that has since been replaced. The result is discarded.
var ErrStaleSelection = errors.New("selection is no longer current")

// ErrNotFound matches every *NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

// ValidationError reports input that is rejected before any store call.
type ValidationError struct {
	Subject  string   // "evaluation", "transcript", ...
	Problems []string // one entry per failed check
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return e.Subject + " is invalid"
	}
	return fmt.Sprintf("%s is invalid: %s", e.Subject, strings.Join(e.Problems, "; "))
}

// NotFoundError reports an absent resource in the store.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransportError reports an unreachable store or a non-2xx answer.
type TransportError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// FeedbackFailure is one per-message write that failed during a submission.
type FeedbackFailure struct {
	Index int
	Err   error
}

// PartialPersistError is attached to an otherwise successful submission when
// one or more feedback writes failed after the evaluation was saved.
type PartialPersistError struct {
	DialogID string
	Failures []FeedbackFailure
}

func (e *PartialPersistError) Error() string {
	return fmt.Sprintf("feedback for dialog %s not saved for messages %s",
		e.DialogID, joinInts(e.FailedIndexes()))
}

// FailedIndexes returns the failed message indexes in ascending order.
func (e *PartialPersistError) FailedIndexes() []int {
	out := make([]int, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Index)
	}
	sort.Ints(out)
	return out
}

func (e *PartialPersistError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// IsNotFound reports whether err is, or wraps, a *NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
