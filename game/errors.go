package game

import (
	"errors"
	"fmt"

	"spot-game-server/entitylog"
)

// Kind classifies an engine error.
type Kind string

const (
	KindValidation  Kind = "ValidationError"
	KindNotFound    Kind = "NotFoundError"
	KindUnavailable Kind = "StoreUnavailable"
	KindRule        Kind = "RuleEvaluationError"
)

// Error is the error value handed back to callers as {kind, message}.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind when target carries no message, so
// errors.Is(err, game.ErrNotFound) works for every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrUnavailable = &Error{Kind: KindUnavailable}
	ErrRule        = &Error{Kind: KindRule}
)

func validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// storeErr classifies a failure coming back from a log store or the geometry
// engine. Errors already classified pass through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	if errors.Is(err, entitylog.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: op, Err: err}
	}
	// entitylog.ErrUnavailable, geo.ErrUnavailable and anything unexpected
	// from a backend.
	return &Error{Kind: KindUnavailable, Message: op, Err: err}
}

// KindOf returns the kind of err, defaulting to StoreUnavailable for
// unclassified failures.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnavailable
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var ge *Error
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return err.Error()
}
