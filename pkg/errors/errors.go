// Package errors provides the structured error type used to describe asset load failures.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for asset cache operations.
type ErrorCode string

// Error code constants grouped by category.
const (
	// Configuration Errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"

	// Filesystem Errors
	ErrCodeFileNotFound     ErrorCode = "FILE_NOT_FOUND"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodePathInvalid      ErrorCode = "PATH_INVALID"
	ErrCodeStorageRead      ErrorCode = "STORAGE_READ"

	// Resource Errors
	ErrCodeLimitExceeded ErrorCode = "LIMIT_EXCEEDED"

	// State Errors
	ErrCodeNotInitialized   ErrorCode = "NOT_INITIALIZED"
	ErrCodeComponentStopped ErrorCode = "COMPONENT_STOPPED"

	// Operation Errors
	ErrCodeOperationCanceled ErrorCode = "OPERATION_CANCELED"

	// Internal Errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryResource      ErrorCategory = "resource"
	CategoryState         ErrorCategory = "state"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// AssetError represents a structured error with context and metadata.
type AssetError struct {
	Code     ErrorCode     `json:"code"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// Retryable reports whether a fresh load could plausibly succeed.
	Retryable bool `json:"retryable"`
}

// Error implements the error interface.
func (e *AssetError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *AssetError) Unwrap() error {
	return e.Cause
}

// Is matches another *AssetError by code (for errors.Is compatibility).
func (e *AssetError) Is(target error) bool {
	if other, ok := target.(*AssetError); ok {
		return e.Code == other.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *AssetError) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.RequestID != "" {
		parts = append(parts, fmt.Sprintf("RequestID=%s", e.RequestID))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("AssetError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *AssetError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates a new asset error with default values.
func NewError(code ErrorCode, message string) *AssetError {
	return &AssetError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
		Retryable: IsRetryableByDefault(code),
	}
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "FILE_") || strings.HasPrefix(codeStr, "PERMISSION_") ||
		strings.HasPrefix(codeStr, "PATH_") || strings.HasPrefix(codeStr, "STORAGE_"):
		return CategoryFilesystem
	case strings.HasPrefix(codeStr, "LIMIT_"):
		return CategoryResource
	case strings.HasPrefix(codeStr, "NOT_INITIALIZED") || strings.HasPrefix(codeStr, "COMPONENT_"):
		return CategoryState
	case strings.HasPrefix(codeStr, "OPERATION_"):
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
func IsRetryableByDefault(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		ErrCodeStorageRead:       true,
		ErrCodeOperationCanceled: true,
		ErrCodeInternalError:     true,
	}
	return retryableCodes[code]
}

// FromOpenError classifies an error returned while opening or reading path.
func FromOpenError(path string, err error) *AssetError {
	var code ErrorCode
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		code = ErrCodeFileNotFound
	case stderrors.Is(err, fs.ErrPermission):
		code = ErrCodePermissionDenied
	case stderrors.Is(err, fs.ErrInvalid):
		code = ErrCodePathInvalid
	default:
		code = ErrCodeStorageRead
	}
	return NewError(code, fmt.Sprintf("cannot read %q", path)).
		WithContext("path", path).
		WithCause(err)
}

// CodeOf returns the code of the first AssetError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var assetErr *AssetError
	if stderrors.As(err, &assetErr) {
		return assetErr.Code
	}
	return ""
}

// WithContext adds contextual information to an error
func (e *AssetError) WithContext(key, value string) *AssetError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *AssetError) WithComponent(component string) *AssetError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *AssetError) WithOperation(operation string) *AssetError {
	e.Operation = operation
	return e
}

// WithRequestID tags the error with the load request that produced it
func (e *AssetError) WithRequestID(id string) *AssetError {
	e.RequestID = id
	return e
}

// WithCause sets the underlying cause
func (e *AssetError) WithCause(cause error) *AssetError {
	e.Cause = cause
	return e
}
