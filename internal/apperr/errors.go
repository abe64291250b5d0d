// Package apperr defines the domain error type shared by the engine, the
// matchmaking coordinator and the transports.
package apperr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error is a domain failure carrying a machine-readable code.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// GRPCStatus lets grpc/status.FromError convert the error directly.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code.GRPCCode(), e.Error())
}

// New creates a domain error.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates a domain error with structured context for clients.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks. They match any error with the same code.
var (
	ErrInvalidDeck           = &Error{Code: CodeInvalidDeck}
	ErrValidation            = &Error{Code: CodeValidation}
	ErrInsufficientResources = &Error{Code: CodeInsufficientResources}
	ErrTargeting             = &Error{Code: CodeTargeting}
	ErrNotYourTurn           = &Error{Code: CodeNotYourTurn}
	ErrInvalidPhaseAction    = &Error{Code: CodeInvalidPhaseAction}
	ErrPriorityViolation     = &Error{Code: CodePriorityViolation}
	ErrMatchExists           = &Error{Code: CodeMatchExists}
	ErrEntryClaimed          = &Error{Code: CodeEntryClaimed}
	ErrMatchNotFound         = &Error{Code: CodeMatchNotFound}
	ErrMatchCompleted        = &Error{Code: CodeMatchCompleted}
	ErrEntryNotFound         = &Error{Code: CodeEntryNotFound}
	ErrUnauthenticated       = &Error{Code: CodeUnauthenticated}
)

// CodeOf extracts the code from any error, CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// MetadataOf returns the metadata from a domain error, nil otherwise.
func MetadataOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}

// ToGRPC converts any error into a gRPC status error.
func ToGRPC(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e.GRPCStatus().Err()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, "an unexpected error occurred")
}
