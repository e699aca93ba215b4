package domain

import (
	"errors"
	"net/http"
)

// Common errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrForbidden         = errors.New("access forbidden: resource belongs to another branch")
	ErrValidation        = errors.New("validation failed")
	ErrDuplicate         = errors.New("record already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("record was modified concurrently")
	ErrRunInProgress     = errors.New("reconciliation run already in progress")
	ErrRunIncomplete     = errors.New("reconciliation run incomplete")
)

// AppError is an error with a stable code and HTTP status for API responses
type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any AppError with the same code, so wrapped copies still
// compare equal to the catalogue entry.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of e carrying cause as details and unwrap target
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.cause = cause
	if cause != nil {
		cp.Details = cause.Error()
	}
	return &cp
}

// WithDetails returns a copy of e with a details string
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func newAppError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message}
}

// System errors
var (
	ErrSystemUnknown    = newAppError("SYSTEM_UNKNOWN_ERROR", http.StatusInternalServerError, "Something went wrong")
	ErrSystemDatabase   = newAppError("SYSTEM_DATABASE_ERROR", http.StatusInternalServerError, "Database operation failed")
	ErrSystemFileSystem = newAppError("SYSTEM_FILE_SYSTEM_ERROR", http.StatusInternalServerError, "File system error occurred")
	ErrSystemConfig     = newAppError("SYSTEM_CONFIG_ERROR", http.StatusInternalServerError, "System configuration issue")
	ErrSystemNetwork    = newAppError("SYSTEM_NETWORK_ERROR", http.StatusServiceUnavailable, "Network connection failed")
	ErrBadRequest       = newAppError("SYSTEM_BAD_REQUEST", http.StatusBadRequest, "Invalid request")
)

// Authentication and authorization errors
var (
	ErrAuthInvalidCredentials = newAppError("AUTH_INVALID_CREDENTIALS", http.StatusUnauthorized, "Invalid credentials")
	ErrAuthUserInactive       = newAppError("AUTH_USER_INACTIVE", http.StatusForbidden, "User inactive")
	ErrAuthIncorrectPassword  = newAppError("AUTH_INCORRECT_PASSWORD", http.StatusUnauthorized, "Incorrect password")
	ErrAuthEmailExists        = newAppError("AUTH_EMAIL_EXISTS", http.StatusBadRequest, "Email already exists")
	ErrAuthTokenExpired       = newAppError("AUTH_TOKEN_EXPIRED", http.StatusUnauthorized, "Authentication token expired")
	ErrAuthUnauthorized       = newAppError("AUTH_UNAUTHORIZED_ACCESS", http.StatusForbidden, "You are not authorized to access this resource")
)

// User errors
var (
	ErrUserNotFound       = newAppError("USER_NOT_FOUND", http.StatusNotFound, "User not found")
	ErrUserCreationFailed = newAppError("USER_CREATION_FAILED", http.StatusInternalServerError, "Failed to create user")
)

// Branch errors
var (
	ErrBranchNotFound       = newAppError("BRANCH_NOT_FOUND", http.StatusNotFound, "Branch not found")
	ErrBranchCreationFailed = newAppError("BRANCH_CREATION_FAILED", http.StatusInternalServerError, "Failed to create branch")
	ErrBranchUpdateFailed   = newAppError("BRANCH_UPDATE_FAILED", http.StatusInternalServerError, "Failed to update branch")
	ErrBranchDeletionFailed = newAppError("BRANCH_DELETION_FAILED", http.StatusInternalServerError, "Failed to delete branch")
)

// Customer errors
var (
	ErrCustomerNotFound = newAppError("CUSTOMER_NOT_FOUND", http.StatusNotFound, "Customer not found")
	ErrCustomerExists   = newAppError("CUSTOMER_EXISTS", http.StatusConflict, "Customer with this email, CNIC or phone already exists")
	ErrNoDocuments      = newAppError("CUSTOMER_NO_DOCUMENTS", http.StatusBadRequest, "No files were uploaded")
)

// Package errors
var (
	ErrPackageNotFound = newAppError("PACKAGE_NOT_FOUND", http.StatusNotFound, "Package not found")
	ErrPackageInactive = newAppError("PACKAGE_INACTIVE", http.StatusBadRequest, "Package is not available")
)

// Subscription errors
var (
	ErrSubscriptionNotFound   = newAppError("SUBSCRIPTION_NOT_FOUND", http.StatusNotFound, "Subscription not found")
	ErrSubscriptionTransition = newAppError("SUBSCRIPTION_INVALID_TRANSITION", http.StatusConflict, "Subscription cannot move to the requested status")
	ErrReconcileBusy          = newAppError("RECONCILIATION_IN_PROGRESS", http.StatusConflict, "A reconciliation run is already in progress")
	ErrReconcileIncomplete    = newAppError("RECONCILIATION_INCOMPLETE", http.StatusServiceUnavailable, "Reconciliation run did not complete")
)

// Ticket errors
var (
	ErrTicketNotFound = newAppError("TICKET_NOT_FOUND", http.StatusNotFound, "Ticket not found")
)
