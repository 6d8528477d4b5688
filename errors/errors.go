// Package errors provides standardized error handling for the semserve
// request pipeline. It includes error classification, standard error
// variables, helper functions for consistent wrapping, and the mapping
// from error classes to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorInvalid represents errors caused by invalid request input
	// (missing parameters, out-of-range integers)
	ErrorInvalid ErrorClass = iota
	// ErrorNotFound represents queries that referenced a variable with
	// no matching data in any source
	ErrorNotFound
	// ErrorConnectivity represents data source network or certificate failures
	ErrorConnectivity
	// ErrorPipe represents failures raised by postprocessing pipe modules
	ErrorPipe
	// ErrorConversion represents result serialization or rendering failures
	ErrorConversion
	// ErrorNegotiation represents an Accept header no representation satisfies
	ErrorNegotiation
	// ErrorInternal represents everything else
	ErrorInternal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorInvalid:
		return "invalid"
	case ErrorNotFound:
		return "not-found"
	case ErrorConnectivity:
		return "connectivity"
	case ErrorPipe:
		return "pipe"
	case ErrorConversion:
		return "conversion"
	case ErrorNegotiation:
		return "negotiation"
	case ErrorInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Parameter validation errors
	ErrMissingParameter     = errors.New("missing required parameter")
	ErrIntegerParse         = errors.New("parameter is not a valid integer")
	ErrIntegerBelowMinimum  = errors.New("parameter below configured minimum")
	ErrIntegerAboveMaximum  = errors.New("parameter above configured maximum")
	ErrUnknownParameterType = errors.New("unknown parameter type")

	// Configuration errors
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrMissingConfig    = errors.New("missing required configuration")
	ErrDataSourceCycle  = errors.New("data source resolution cycle")
	ErrUnknownDialect   = errors.New("unknown query dialect")
	ErrUnknownPipe      = errors.New("unknown pipe module")
	ErrTemplateNotFound = errors.New("template not found")

	// Data source connectivity errors
	ErrSourceUnreachable = errors.New("data source unreachable")
	ErrEngineNotReady    = errors.New("query engine not available")

	// Negotiation
	ErrNotAcceptable = errors.New("no acceptable content type")
)

// ClassifiedError wraps an error with its classification. Component names
// the subsystem (for query handlers this is the dialect prefix, GRAPHQL or
// SPARQL, so callers can classify by origin), Operation the method.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Classify returns the error class for an error. Unclassified errors whose
// message mentions an unbound query variable are treated as not-found,
// matching the behavior of engines that report "Variable ?x not bound".
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorInternal
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}

	if errors.Is(err, ErrMissingParameter) ||
		errors.Is(err, ErrIntegerParse) ||
		errors.Is(err, ErrIntegerBelowMinimum) ||
		errors.Is(err, ErrIntegerAboveMaximum) {
		return ErrorInvalid
	}
	if errors.Is(err, ErrNotAcceptable) {
		return ErrorNegotiation
	}
	if errors.Is(err, ErrSourceUnreachable) {
		return ErrorConnectivity
	}

	if strings.Contains(err.Error(), "Variable") {
		return ErrorNotFound
	}

	return ErrorInternal
}

// IsInvalid checks if an error is due to invalid request input
func IsInvalid(err error) bool {
	return err != nil && Classify(err) == ErrorInvalid
}

// IsNotFound checks if an error represents an unbound query variable
func IsNotFound(err error) bool {
	return err != nil && Classify(err) == ErrorNotFound
}

// IsConnectivity checks if an error represents a data source failure
func IsConnectivity(err error) bool {
	return err != nil && Classify(err) == ErrorConnectivity
}

// HTTPStatus maps an error to the HTTP status code the response should carry
func HTTPStatus(err error) int {
	switch Classify(err) {
	case ErrorInvalid:
		return http.StatusBadRequest
	case ErrorNotFound:
		return http.StatusNotFound
	case ErrorNegotiation:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// newClassified creates a new classified error.
// Internal helper - use the Wrap* functions instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapInvalid wraps an error as invalid request input with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrapped, component, method, wrapped.Error())
}

// WrapNotFound wraps an error as an unbound-variable resolution failure
func WrapNotFound(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ErrorNotFound, wrapped, component, method, wrapped.Error())
}

// WrapConnectivity wraps an error as a data source connectivity failure
func WrapConnectivity(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ErrorConnectivity, wrapped, component, method, wrapped.Error())
}

// WrapPipe wraps an error raised by a postprocessing pipe module
func WrapPipe(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ErrorPipe, wrapped, component, method, wrapped.Error())
}

// WrapConversion wraps a serialization or rendering failure
func WrapConversion(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ErrorConversion, wrapped, component, method, wrapped.Error())
}

// WrapInternal wraps any other failure with context
func WrapInternal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ErrorInternal, wrapped, component, method, wrapped.Error())
}

// QueryError carries both a user-facing message (embedding the query text)
// and the engine's raw message, so callers can match on either.
type QueryError struct {
	Query     string
	EngineMsg string
	Err       error
}

// Error implements the error interface
func (qe *QueryError) Error() string {
	return fmt.Sprintf("error during execution of query %q: %s", qe.Query, qe.EngineMsg)
}

// Unwrap returns the underlying engine error
func (qe *QueryError) Unwrap() error {
	return qe.Err
}

// NewQueryError builds a QueryError from a failed engine call
func NewQueryError(query string, err error) *QueryError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &QueryError{Query: query, EngineMsg: msg, Err: err}
}
