package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Billing and enrollment rule violations. Each rejection leaves state untouched.
var (
	ErrCouponInvalid          = New("COUPON_INVALID", http.StatusUnprocessableEntity, "coupon is not valid")
	ErrBatchFull              = New("BATCH_FULL", http.StatusConflict, "batch has no remaining seats")
	ErrAmountExceedsRemaining = New("AMOUNT_EXCEEDS_REMAINING", http.StatusUnprocessableEntity, "remaining amount is less than submitted amount")
	ErrOverpaymentRejected    = New("OVERPAYMENT_REJECTED", http.StatusConflict, "verification would exceed the invoice final amount")
	ErrNotEnrolled            = New("NOT_ENROLLED", http.StatusForbidden, "student has no approved enrollment in this batch")
	ErrClaimAlreadyDecided    = New("CLAIM_ALREADY_DECIDED", http.StatusConflict, "payment claim already verified or rejected")
)

// CouponInvalid returns a COUPON_INVALID error carrying the reason code.
func CouponInvalid(reason string) *Error {
	return New(ErrCouponInvalid.Code, ErrCouponInvalid.Status, fmt.Sprintf("coupon is not valid: %s", reason))
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
