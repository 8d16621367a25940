package errors

import (
	stderrors "errors"
	"fmt"

	"fairaudit/internal/fairness"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewNetworkError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeNetwork, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// As finds the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromFairness converts evaluation failures into validation errors carrying
// the offending detail as context. Other errors become internal errors.
func FromFairness(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}

	var (
		insufficient *fairness.InsufficientDataError
		single       *fairness.SingleGroupError
		invalid      *fairness.InvalidRecordError
		unknown      *fairness.UnknownGroupError
	)
	switch {
	case stderrors.As(err, &insufficient):
		return NewValidationError(ErrCodeInsufficientData, "not enough records to evaluate fairness", err).
			WithContext("record_count", insufficient.Count).
			WithContext("minimum_records", insufficient.Minimum)
	case stderrors.As(err, &single):
		return NewValidationError(ErrCodeSingleGroup, "at least two groups are required", err).
			WithContext("groups", single.Groups)
	case stderrors.As(err, &invalid):
		return NewValidationError(ErrCodeInvalidRecord, "record failed validation", err).
			WithContext("record_index", invalid.Index).
			WithContext("field", invalid.Field)
	case stderrors.As(err, &unknown):
		return NewValidationError(ErrCodeUnknownGroup, "privileged group not found in records", err).
			WithContext("group", unknown.Group)
	}
	return NewInternalError(ErrCodeEvaluationFailed, "fairness evaluation failed", err)
}

// Common error codes
const (
	ErrCodeFileNotFound     = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable  = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat    = "INVALID_FORMAT"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeMissingAPIKey    = "MISSING_API_KEY"
	ErrCodeNetworkTimeout   = "NETWORK_TIMEOUT"
	ErrCodeInvalidConfig    = "INVALID_CONFIG"
	ErrCodeInvalidProfile   = "INVALID_PROFILE"
	ErrCodeSecretFetch      = "SECRET_FETCH_FAILED"
	ErrCodeEvaluationFailed = "EVALUATION_FAILED"
	ErrCodeLedgerWrite      = "LEDGER_WRITE_FAILED"
	ErrCodeLedgerRead       = "LEDGER_READ_FAILED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeBiasDetected     = "BIAS_DETECTED"

	ErrCodeInsufficientData = "INSUFFICIENT_DATA"
	ErrCodeSingleGroup      = "SINGLE_GROUP"
	ErrCodeInvalidRecord    = "INVALID_RECORD"
	ErrCodeUnknownGroup     = "UNKNOWN_GROUP"
)
