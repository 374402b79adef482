package domain

import (
	"errors"
	"fmt"
)

// Category sentinels shared across the domain.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicate     = fmt.Errorf("duplicate")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Sentinel errors for the orchestration domain.
var (
	ErrProviderNotFound   = fmt.Errorf("llm provider not found")
	ErrCatalogUnavailable = fmt.Errorf("agent catalog unavailable")
	ErrSchemaViolation    = fmt.Errorf("structured response violates schema")
	ErrGenerationFailed   = fmt.Errorf("structured generation failed")

	// Resilience errors mapped from provider HTTP responses.
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrContextOverflow = fmt.Errorf("context window exceeded")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Engine.SelectAgent")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed
// on retry. Auth failures and schema violations are never retryable; every
// provider-side or transport failure is.
func IsRetryableError(err error) bool {
	if errors.Is(err, ErrAuthInvalid) || errors.Is(err, ErrSchemaViolation) {
		return false
	}
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrProviderError) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrGenerationFailed)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

// Error codes. Every sentinel error maps to exactly one code.
const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeDuplicate          ErrorCode = "DUPLICATE"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeProviderError      ErrorCode = "PROVIDER_ERROR"
	CodeProviderNotFound   ErrorCode = "PROVIDER_NOT_FOUND"
	CodeCatalogUnavailable ErrorCode = "CATALOG_UNAVAILABLE"
	CodeSchemaViolation    ErrorCode = "SCHEMA_VIOLATION"
	CodeGenerationFailed   ErrorCode = "GENERATION_FAILED"
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid        ErrorCode = "AUTH_INVALID"
	CodeContextOverflow    ErrorCode = "CONTEXT_OVERFLOW"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:           CodeNotFound,
	ErrDuplicate:          CodeDuplicate,
	ErrTimeout:            CodeTimeout,
	ErrInvalidInput:       CodeInvalidInput,
	ErrProviderError:      CodeProviderError,
	ErrProviderNotFound:   CodeProviderNotFound,
	ErrCatalogUnavailable: CodeCatalogUnavailable,
	ErrSchemaViolation:    CodeSchemaViolation,
	ErrGenerationFailed:   CodeGenerationFailed,
	ErrRateLimit:          CodeRateLimit,
	ErrAuthInvalid:        CodeAuthInvalid,
	ErrContextOverflow:    CodeContextOverflow,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}
