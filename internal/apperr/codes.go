package apperr

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Validation
	CodeInvalidDeck           Code = "INVALID_DECK"
	CodeValidation            Code = "VALIDATION"
	CodeInsufficientResources Code = "INSUFFICIENT_RESOURCES"
	CodeTargeting             Code = "TARGETING"
	CodeInvalidPhaseAction    Code = "INVALID_PHASE_ACTION"

	// Timing
	CodeNotYourTurn       Code = "NOT_YOUR_TURN"
	CodePriorityViolation Code = "PRIORITY_VIOLATION"

	// Concurrency conflicts
	CodeMatchExists  Code = "MATCH_EXISTS"
	CodeEntryClaimed Code = "ENTRY_CLAIMED"

	// Lookup / lifecycle
	CodeMatchNotFound  Code = "MATCH_NOT_FOUND"
	CodeMatchCompleted Code = "MATCH_COMPLETED"
	CodeEntryNotFound  Code = "ENTRY_NOT_FOUND"

	CodeUnauthenticated Code = "UNAUTHENTICATED"

	CodeInternal Code = "INTERNAL"
)

// Category groups codes by how callers should react to them.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryTiming     Category = "timing"
	CategoryConflict   Category = "conflict"
	CategoryNotFound   Category = "not_found"
	CategoryInternal   Category = "internal"
)

// Category returns the error category for the code.
func (c Code) Category() Category {
	switch c {
	case CodeInvalidDeck, CodeValidation, CodeInsufficientResources, CodeTargeting,
		CodeInvalidPhaseAction, CodeMatchCompleted:
		return CategoryValidation
	case CodeNotYourTurn, CodePriorityViolation:
		return CategoryTiming
	case CodeMatchExists, CodeEntryClaimed:
		return CategoryConflict
	case CodeMatchNotFound, CodeEntryNotFound:
		return CategoryNotFound
	case CodeUnauthenticated:
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// Retryable reports whether the caller may simply retry the same request.
func (c Code) Retryable() bool {
	return c.Category() == CategoryConflict
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidDeck, CodeValidation, CodeTargeting:
		return codes.InvalidArgument
	case CodeInsufficientResources, CodeInvalidPhaseAction, CodeNotYourTurn,
		CodePriorityViolation, CodeMatchCompleted:
		return codes.FailedPrecondition
	case CodeMatchExists:
		return codes.AlreadyExists
	case CodeEntryClaimed:
		return codes.Aborted
	case CodeMatchNotFound, CodeEntryNotFound:
		return codes.NotFound
	case CodeUnauthenticated:
		return codes.Unauthenticated
	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
