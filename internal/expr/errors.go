package expr

import (
	"errors"
	"fmt"
)

// Location is a position in query text. The zero Location means unknown.
type Location struct {
	Line   int
	Column int
}

// IsZero reports whether the location is unknown.
func (l Location) IsZero() bool {
	return l.Line == 0 && l.Column == 0
}

func (l Location) String() string {
	if l.IsZero() {
		return "?"
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// ErrorCode is an XQuery error code.
type ErrorCode string

const (
	// ErrTypeMismatch: a value does not match a required type (XPTY0004).
	ErrTypeMismatch ErrorCode = "XPTY0004"

	// ErrSyntax: the query text does not parse (XPST0003).
	ErrSyntax ErrorCode = "XPST0003"

	// ErrUndefinedVariable: reference to an undeclared variable (XPST0008).
	ErrUndefinedVariable ErrorCode = "XPST0008"

	// ErrUnknownFunction: no function with that name and arity (XPST0017).
	ErrUnknownFunction ErrorCode = "XPST0017"

	// ErrUpdatingExpression: an updating expression where none is allowed (XUST0001).
	ErrUpdatingExpression ErrorCode = "XUST0001"

	// ErrInvalidArgument: no effective boolean value or bad argument type (FORG0006).
	ErrInvalidArgument ErrorCode = "FORG0006"

	// ErrDivisionByZero: integer division or modulus by zero (FOAR0001).
	ErrDivisionByZero ErrorCode = "FOAR0001"

	// ErrNotAtomizable: atomization of a map (FOTY0013).
	ErrNotAtomizable ErrorCode = "FOTY0013"

	// ErrUnsupportedCollation: unknown collation URI (FOCH0002).
	ErrUnsupportedCollation ErrorCode = "FOCH0002"

	// ErrContextAbsent: the context item is needed but absent (XPDY0002).
	ErrContextAbsent ErrorCode = "XPDY0002"

	// ErrUserError: raised by fn:error (FOER0000).
	ErrUserError ErrorCode = "FOER0000"

	// ErrNoCollection: the collection is not available (FODC0002).
	ErrNoCollection ErrorCode = "FODC0002"

	// ErrZeroOrOne: fn:zero-or-one called with more than one item (FORG0003).
	ErrZeroOrOne ErrorCode = "FORG0003"

	// ErrOneOrMore: fn:one-or-more called with the empty sequence (FORG0004).
	ErrOneOrMore ErrorCode = "FORG0004"

	// ErrExactlyOne: fn:exactly-one called with other than one item (FORG0005).
	ErrExactlyOne ErrorCode = "FORG0005"
)

// Error is a static or dynamic query error.
type Error struct {
	// Code is the XQuery error code.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Location is where in the query the failing node sits.
	Location Location

	// Static is true for errors raised while compiling.
	Static bool
}

func (e *Error) Error() string {
	if e.Location.IsZero() {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Location, e.Message)
}

// StaticError creates a compile-time error.
func StaticError(code ErrorCode, loc Location, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Location: loc, Static: true}
}

// DynamicError creates an evaluation-time error.
func DynamicError(code ErrorCode, loc Location, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Location: loc}
}

// CodeOf returns the XQuery error code carried by err, if any.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) (ErrorCode, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code, true
	}
	return "", false
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsStaticError returns true if the error was raised during compilation.
func IsStaticError(err error) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Static
	}
	return false
}

// InternalError signals a broken optimizer invariant. It is used as a panic
// value, never returned, and is recovered at the engine boundary.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Message
}

// Internalf panics with an *InternalError.
func Internalf(format string, args ...any) {
	panic(&InternalError{Message: fmt.Sprintf(format, args...)})
}
