package shared

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable failure class surfaced to clients.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeInvalidState       Code = "INVALID_STATE"
	CodePeriodLocked       Code = "PERIOD_LOCKED"
	CodeFteInvalid         Code = "FTE_INVALID"
	CodeDemandXOR          Code = "DEMAND_XOR"
	CodePlaceholderBlocked Code = "PLACEHOLDER_BLOCKED_4MFC"
	CodeActualsOver100     Code = "ACTUALS_OVER_100"
	CodeAlreadySigned      Code = "ALREADY_SIGNED"
	CodeNotCurrentStep     Code = "NOT_CURRENT_STEP"
	CodeInstanceTerminal   Code = "INSTANCE_TERMINAL"
	CodeUnauthorizedRole   Code = "UNAUTHORIZED_ROLE"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
)

// Error is a terminal, user-visible domain failure. Extra carries
// remediation data such as offending_line_ids or total_percent.
type Error struct {
	Code    Code
	Message string
	Extra   map[string]any
}

// NewError constructs a domain error for the given code.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf constructs a domain error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// With attaches a remediation field and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
	return e
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// AsDomainError unwraps err into a taxonomy error, if it is one.
func AsDomainError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code of err, or empty when err is not a
// domain error.
func CodeOf(err error) Code {
	if de, ok := AsDomainError(err); ok {
		return de.Code
	}
	return ""
}
