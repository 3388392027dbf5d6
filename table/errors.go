package table

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every NOT_FOUND coded Error via errors.Is.
var ErrNotFound = errors.New("not found")

// ErrorCode categorizes table errors.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates a caller supplied unusable input.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeInvalidState indicates a manager or selection is misconfigured.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeNotFound indicates a row or key does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeUnknownClass indicates a class name with no registered Class.
	ErrCodeUnknownClass ErrorCode = "UNKNOWN_CLASS"
)

// Error is the error type returned for table-level failures.
type Error struct {
	Code    ErrorCode
	Message string

	// Table is the table involved, if any.
	Table string

	// Key is the offending key or class name, if any.
	Key string
}

func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match NOT_FOUND errors.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Code == ErrCodeNotFound
}

func hasCode(err error, code ErrorCode) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsNotFound returns true if err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsInvalidArgument returns true if err is an INVALID_ARGUMENT error.
func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrCodeInvalidArgument)
}

// IsInvalidState returns true if err is an INVALID_STATE error.
func IsInvalidState(err error) bool {
	return hasCode(err, ErrCodeInvalidState)
}

// IsUnknownClass returns true if err is an UNKNOWN_CLASS error.
func IsUnknownClass(err error) bool {
	return hasCode(err, ErrCodeUnknownClass)
}

func rowNotFound(table string, primary any) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("no row with primary value %v", primary),
		Table:   table,
	}
}

func keyNotFound(table, key string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("key %q is neither a column nor a set value", key),
		Table:   table,
		Key:     key,
	}
}
