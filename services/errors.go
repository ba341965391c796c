package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeQuota        ErrorType = "quota"
	ErrorTypeProvider     ErrorType = "provider"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail returns a copy of the error with one detail added. The
// receiver is left untouched so the package-level sentinels stay clean.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	clone := &DomainError{
		Type:    e.Type,
		Message: e.Message,
		Err:     e.Err,
		Details: make(map[string]interface{}, len(e.Details)+1),
	}
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return clone
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrQuotaNotFound = NewDomainError(ErrorTypeNotFound, "quota entry not found", nil)

	// Validation Errors
	ErrInvalidInput    = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyPrompt     = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)
	ErrInvalidTaskType = NewDomainError(ErrorTypeValidation, "invalid task type", nil)
	ErrInvalidQuality  = NewDomainError(ErrorTypeValidation, "invalid quality level", nil)
	ErrInvalidProvider = NewDomainError(ErrorTypeValidation, "invalid provider specified", nil)

	// Authorization Errors
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)

	// Quota Errors
	ErrQuotaExhausted = NewDomainError(ErrorTypeQuota, "token quota exhausted", nil)

	// Provider Errors
	ErrAllProvidersFailed = NewDomainError(ErrorTypeProvider, "all providers failed", nil)
	ErrNoHealthyProvider  = NewDomainError(ErrorTypeProvider, "no healthy provider available", nil)

	// Internal Errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal error", nil)
)

// isErrorType reports whether err wraps a DomainError of the given type
func isErrorType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsNotFoundError checks if an error is a not-found error
func IsNotFoundError(err error) bool {
	return isErrorType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isErrorType(err, ErrorTypeValidation)
}

// IsUnauthorizedError checks if an error is an authorization error
func IsUnauthorizedError(err error) bool {
	return isErrorType(err, ErrorTypeUnauthorized)
}

// IsQuotaError checks if an error is a quota error
func IsQuotaError(err error) bool {
	return isErrorType(err, ErrorTypeQuota)
}

// IsProviderError checks if an error is a provider error
func IsProviderError(err error) bool {
	return isErrorType(err, ErrorTypeProvider)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isErrorType(err, ErrorTypeInternal)
}

// GetErrorType extracts the error type from a domain error.
// Returns ErrorTypeInternal for non-domain errors.
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// GetErrorDetails extracts the details map from a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}
