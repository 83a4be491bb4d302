package common

import (
	"errors"
	"net/http"
)

// Error codes shared across the checkout and settlement flow. Monetary
// mismatches always fail closed: the attempt is rejected, never accepted.
const (
	CodeEmptyCart         = "EMPTY_CART"
	CodeAddressNotFound   = "ADDRESS_NOT_FOUND"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeSignatureInvalid  = "SIGNATURE_INVALID"
	CodeAmountMismatch    = "AMOUNT_MISMATCH"
	CodeStateConflict     = "STATE_CONFLICT"
	CodeOrderNotFound     = "ORDER_NOT_FOUND"
	CodeAttemptNotFound   = "ATTEMPT_NOT_FOUND"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// ErrEmptyCart rejects checkout when the cart has no lines. No state is created.
func ErrEmptyCart() *AppError {
	return NewAppError(CodeEmptyCart, "cart has no items", http.StatusUnprocessableEntity, nil)
}

// ErrAddressNotFound rejects checkout when the address does not resolve for the caller.
func ErrAddressNotFound() *AppError {
	return NewAppError(CodeAddressNotFound, "address not found", http.StatusNotFound, nil)
}

// ErrInsufficientFunds reports a wallet balance below the order total.
func ErrInsufficientFunds() *AppError {
	return NewAppError(CodeInsufficientFunds, "wallet balance below order total", http.StatusPaymentRequired, nil)
}

// ErrSignatureInvalid marks a gateway callback whose signature did not verify.
func ErrSignatureInvalid() *AppError {
	return NewAppError(CodeSignatureInvalid, "callback signature verification failed", http.StatusUnauthorized, nil)
}

// ErrAmountMismatch marks a callback reporting an amount different from the frozen order total.
func ErrAmountMismatch() *AppError {
	return NewAppError(CodeAmountMismatch, "reported amount does not match order total", http.StatusBadRequest, nil)
}

// ErrStateConflict reports an order transition attempted from an incompatible state.
func ErrStateConflict(message string) *AppError {
	return NewAppError(CodeStateConflict, message, http.StatusConflict, nil)
}

// CodeOf returns the application error code, or empty when err carries none.
func CodeOf(err error) string {
	var target *AppError
	if errors.As(err, &target) {
		return target.Code
	}
	return ""
}
