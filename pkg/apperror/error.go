package apperror

import "errors"

// Error codes used across the service.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeLockTimeout        = "LOCK_TIMEOUT"
	CodeLockUnavailable    = "LOCK_UNAVAILABLE"
	CodeNoSuchOrder        = "NO_SUCH_ORDER"
	CodeEntryNotReversible = "ENTRY_NOT_REVERSIBLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error represents a coded domain error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// CodeOf returns the code of err, or "" if err carries no code.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// IsBusiness reports whether err is a business failure (as opposed to an
// infrastructure failure). Business failures are recorded in the stock
// update log before being surfaced; infrastructure failures are not.
func IsBusiness(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeInsufficientStock:
		return true
	}
	return false
}

// NotFound creates an item/shop/order absence error.
func NotFound(message string) *Error {
	if message == "" {
		message = "resource not found"
	}
	return &Error{Code: CodeNotFound, Message: message}
}

// InsufficientStock creates an error for a decrement that would drive stock negative.
func InsufficientStock(message string) *Error {
	if message == "" {
		message = "insufficient stock"
	}
	return &Error{Code: CodeInsufficientStock, Message: message}
}

// LockTimeout creates an error for a bounded lock wait that expired.
func LockTimeout(message string) *Error {
	if message == "" {
		message = "timed out waiting for lock"
	}
	return &Error{Code: CodeLockTimeout, Message: message}
}

// LockUnavailable creates an error for a lock service failure.
func LockUnavailable(message string) *Error {
	if message == "" {
		message = "lock service unavailable"
	}
	return &Error{Code: CodeLockUnavailable, Message: message}
}

// NoSuchOrder creates an error for an order with no log entries.
func NoSuchOrder(message string) *Error {
	if message == "" {
		message = "no log entries for order"
	}
	return &Error{Code: CodeNoSuchOrder, Message: message}
}

// EntryNotReversible creates an error for reversing a non-SUCCEEDED log entry.
func EntryNotReversible(message string) *Error {
	if message == "" {
		message = "log entry is not in a reversible state"
	}
	return &Error{Code: CodeEntryNotReversible, Message: message}
}

// Internal creates an unexpected-failure error.
func Internal(message string) *Error {
	if message == "" {
		message = "an unexpected error occurred"
	}
	return &Error{Code: CodeInternal, Message: message}
}
