// Package errors provides the structured error type shared by the ledger
// core, the services and the HTTP layer. Ledger failures are always returned
// as *AppError so the boundary can tell structural problems (400) from
// business-rule violations (403) and missing records (404).
package errors

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so a wrapped
// copy still matches its sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Newf creates an AppError carrying both a formatted message and an internal cause.
func Newf(sentinel *AppError, internal error, format string, args ...any) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// InsufficientFundsError describes a rejected debit.
type InsufficientFundsError struct {
	HolderID  uint
	Requested decimal.Decimal
	Available decimal.Decimal
}

// Shortfall is the amount missing for the debit to be permitted.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("holder %d: requested %s, available %s, short %s",
		e.HolderID, e.Requested.StringFixed(2), e.Available.StringFixed(2), e.Shortfall().StringFixed(2))
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput     = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrMalformedRequest = &AppError{Code: "MALFORMED_REQUEST", Message: "Malformed request", StatusCode: http.StatusBadRequest}
	ErrNotFound         = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer   = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound      = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateUsername = &AppError{Code: "DUPLICATE_USERNAME", Message: "A user with this username already exists", StatusCode: http.StatusConflict}
)

// Holder errors, shared by accounts and budgets.
var (
	ErrAccountNotFound         = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrBudgetNotFound          = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
	ErrDuplicateCode           = &AppError{Code: "DUPLICATE_CODE", Message: "The code is already in use", StatusCode: http.StatusConflict}
	ErrDuplicateName           = &AppError{Code: "DUPLICATE_NAME", Message: "The name is already in use", StatusCode: http.StatusConflict}
	ErrInactiveAccount         = &AppError{Code: "INACTIVE_ACCOUNT", Message: "Account is not active", StatusCode: http.StatusForbidden}
	ErrClosedAccount           = &AppError{Code: "CLOSED_ACCOUNT", Message: "Account is closed", StatusCode: http.StatusForbidden}
	ErrInvalidStatus           = &AppError{Code: "INVALID_STATUS", Message: "Account is not open", StatusCode: http.StatusForbidden}
	ErrNotEmpty                = &AppError{Code: "NOT_EMPTY", Message: "Account balance is not zero", StatusCode: http.StatusForbidden}
	ErrInvalidStatusTransition = &AppError{Code: "INVALID_STATUS_TRANSITION", Message: "Status change not allowed", StatusCode: http.StatusForbidden}
	ErrInvalidDateRange        = &AppError{Code: "INVALID_DATE_RANGE", Message: "Start date must not be after end date", StatusCode: http.StatusForbidden}
	ErrInitialAmountOutOfRange = &AppError{Code: "INITIAL_AMOUNT_OUT_OF_RANGE", Message: "Initial amount is outside the allowed range", StatusCode: http.StatusForbidden}
)

// Transfer errors.
var (
	ErrTransferNotFound    = &AppError{Code: "TRANSFER_NOT_FOUND", Message: "Transfer not found", StatusCode: http.StatusNotFound}
	ErrInvalidAmount       = &AppError{Code: "INVALID_AMOUNT", Message: "Amount must be a positive value with at most two decimal places", StatusCode: http.StatusBadRequest}
	ErrInsufficientFunds   = &AppError{Code: "INSUFFICIENT_FUNDS", Message: "Insufficient funds", StatusCode: http.StatusForbidden}
	ErrSameAccountTransfer = &AppError{Code: "SAME_ACCOUNT_TRANSFER", Message: "Cannot transfer to the same account", StatusCode: http.StatusForbidden}
	ErrDeletionForbidden   = &AppError{Code: "DELETION_FORBIDDEN", Message: "Ledger records cannot be deleted", StatusCode: http.StatusForbidden}
)
