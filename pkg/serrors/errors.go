package serrors

import "fmt"

// BaseError is a machine-readable error with a stable code. The hint, when
// present, tells the operator how to fix the underlying data.
type BaseError struct {
	Code    string
	Message string
	Hint    string
}

func (e *BaseError) Error() string {
	return e.Message
}

func NewError(code, message, hint string) *BaseError {
	return &BaseError{Code: code, Message: message, Hint: hint}
}

// WithDetails returns a copy of the error with the message expanded.
// The code (and therefore errors.Is identity against the sentinel) is kept.
func (e *BaseError) WithDetails(format string, args ...any) *BaseError {
	return &BaseError{
		Code:    e.Code,
		Message: fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...)),
		Hint:    e.Hint,
	}
}

func (e *BaseError) Is(target error) bool {
	var be *BaseError
	if !as(target, &be) {
		return false
	}
	return be.Code == e.Code
}

func as(err error, target **BaseError) bool {
	be, ok := err.(*BaseError)
	if !ok {
		return false
	}
	*target = be
	return true
}

func NewFieldRequiredError(field string) *BaseError {
	return &BaseError{
		Code:    "FIELD_REQUIRED",
		Message: fmt.Sprintf("field %q is required", field),
	}
}

// Code extracts the stable code from an error chain, or "" when the error
// carries none.
func Code(err error) string {
	for err != nil {
		if be, ok := err.(*BaseError); ok {
			return be.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
