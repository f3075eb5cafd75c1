package resolver

import (
	"errors"
	"fmt"
)

const (
	CodeValidation   = "VALIDATION"
	CodeNavigation   = "NAVIGATION_ERROR"
	CodeNoStream     = "NO_STREAM_FOUND"
	CodeSessionFault = "SESSION_FAULT"
	CodeNotFound     = "NOT_FOUND"
	CodeEvalFailure  = "EVAL_FAILURE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// NewError builds a CodedError for callers outside the package.
func NewError(code, msg string, cause error) error {
	return newError(code, msg, cause)
}

// IsCode reports whether err (or anything it wraps) is a CodedError with code.
func IsCode(err error, code string) bool {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}
