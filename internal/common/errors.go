package common

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrExtraction      = errors.New("extraction failed")
	ErrCompletion      = errors.New("completion failed")
	ErrParse           = errors.New("required information not found")
)

// Error codes carried by AppError.Code and written to the journal.
const (
	CodeConfig          = "CONFIG_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeUnsupportedType = "UNSUPPORTED_TYPE"
	CodeExtraction      = "EXTRACTION_ERROR"
	CodeCompletion      = "COMPLETION_ERROR"
	CodeParse           = "PARSE_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ExtractionError reports a source document that could not be turned into text or image content.
type ExtractionError struct {
	Reason string
	Cause  error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction: %s: %v", e.Reason, e.Cause)
	}
	return "extraction: " + e.Reason
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Cause} }

// CompletionReason classifies completion failures for logs and the journal.
type CompletionReason string

const (
	ReasonTransport   CompletionReason = "transport"
	ReasonAuth        CompletionReason = "auth"
	ReasonRateLimited CompletionReason = "rate_limited"
	ReasonStatus      CompletionReason = "status"
	ReasonMalformed   CompletionReason = "malformed_response"
)

// CompletionError reports any failure talking to the chat-completion API.
type CompletionError struct {
	Reason     CompletionReason
	StatusCode int
	Cause      error
}

func (e *CompletionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("completion: %s (status %d): %v", e.Reason, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("completion: %s: %v", e.Reason, e.Cause)
}

func (e *CompletionError) Unwrap() []error { return []error{ErrCompletion, e.Cause} }

// ReasonFromStatus maps an HTTP status from the completion API to a reason.
func ReasonFromStatus(code int) CompletionReason {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ReasonAuth
	case code == http.StatusTooManyRequests:
		return ReasonRateLimited
	default:
		return ReasonStatus
	}
}

// ParseError reports a reply that did not yield the five required fields.
type ParseError struct {
	Found int
	Cause error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse: %v: %v", ErrParse, e.Cause)
	}
	return fmt.Sprintf("parse: %v (found %d of 5 fields)", ErrParse, e.Found)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Cause} }

// ErrorCode returns the stable code for an error in the taxonomy.
func ErrorCode(err error) string {
	var appErr *AppError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return CodeParse
	case errors.Is(err, ErrExtraction):
		return CodeExtraction
	case errors.Is(err, ErrCompletion):
		return CodeCompletion
	case errors.Is(err, ErrUnsupportedType):
		return CodeUnsupportedType
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.As(err, &appErr):
		return appErr.Code
	default:
		return CodeInternal
	}
}

// HTTPStatus maps the taxonomy onto response codes. Only parse failures and
// bad uploads are client errors; everything else is a generic server failure.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps the taxonomy onto gRPC codes.
func GRPCCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrParse), errors.Is(err, ErrInvalidInput):
		return codes.InvalidArgument
	case errors.Is(err, ErrUnsupportedType):
		return codes.Unimplemented
	case errors.Is(err, ErrCompletion):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// InvalidArgumentError builds an InvalidArgument status for malformed requests.
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

// StatusError converts a pipeline error into a gRPC status, hiding causes
// for everything except parse failures.
func StatusError(err error) error {
	if err == nil {
		return nil
	}
	code := GRPCCode(err)
	if code == codes.InvalidArgument {
		return status.Error(code, err.Error())
	}
	return status.Error(code, "processing failed")
}
