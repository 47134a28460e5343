package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeConfig    ErrorType = "config"    // missing/invalid provider, key or model
	ErrorTypeParse     ErrorType = "parse"     // rasterization or text-extraction failure
	ErrorTypeTransient ErrorType = "transient" // rate limit or server-side provider error, retryable
	ErrorTypeRequest   ErrorType = "request"   // malformed request to the provider, never retried
	ErrorTypeAPI       ErrorType = "api"       // other provider/API failure
	ErrorTypeIO        ErrorType = "io"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func ParseError(message string, err error) *DomainError {
	return NewError(ErrorTypeParse, message, err)
}

func TransientError(message string, err error) *DomainError {
	return NewError(ErrorTypeTransient, message, err)
}

func RequestError(message string, err error) *DomainError {
	return NewError(ErrorTypeRequest, message, err)
}

func APIError(message string, err error) *DomainError {
	return NewError(ErrorTypeAPI, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// IsType reports whether err (or any error it wraps) is a DomainError of the
// given type.
func IsType(err error, errType ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == errType
	}
	return false
}

func IsConfig(err error) bool    { return IsType(err, ErrorTypeConfig) }
func IsParse(err error) bool     { return IsType(err, ErrorTypeParse) }
func IsTransient(err error) bool { return IsType(err, ErrorTypeTransient) }
func IsRequest(err error) bool   { return IsType(err, ErrorTypeRequest) }
