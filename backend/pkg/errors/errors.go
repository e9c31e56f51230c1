package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeGraph represents graph loading and graph source errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeGenerator represents text-generation/LLM errors
	ErrorTypeGenerator ErrorType = "generator"
	// ErrorTypeIngest represents corpus ingestion errors
	ErrorTypeIngest ErrorType = "ingest"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeTransport represents request decoding and websocket errors
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Graph Errors

// ErrGraphSourceFailed is returned when a graph source cannot be read
type ErrGraphSourceFailed struct {
	*BaseError
	Location string
}

func NewGraphSourceFailed(location string, err error) *ErrGraphSourceFailed {
	return &ErrGraphSourceFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to read graph source: %s", location), err),
		Location:  location,
	}
}

// ErrGraphFormatUnsupported is returned when no source understands a location
type ErrGraphFormatUnsupported struct {
	*BaseError
	Location string
}

func NewGraphFormatUnsupported(location string) *ErrGraphFormatUnsupported {
	return &ErrGraphFormatUnsupported{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("unsupported graph format: %s", location), nil),
		Location:  location,
	}
}

// ErrGraphConnectionFailed is returned when Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Query string
}

func NewGraphQueryFailed(query string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("query failed: %s", query), err),
		Query:     query,
	}
}

// Generator Errors

// ErrGeneratorNotReady is returned when the text generator has no usable endpoint
var ErrGeneratorNotReady = NewBaseError(ErrorTypeGenerator, "text generator is not ready yet", nil)

// ErrGeneratorNoResponse is returned when the LLM returns no choices
var ErrGeneratorNoResponse = NewBaseError(ErrorTypeGenerator, "no response from LLM", nil)

// ErrGeneratorFailed is returned when an LLM request fails
type ErrGeneratorFailed struct {
	*BaseError
	Model     string
	Attempts  int
	Retryable bool
}

func NewGeneratorFailed(model string, attempts int, retryable bool, err error) *ErrGeneratorFailed {
	return &ErrGeneratorFailed{
		BaseError: NewBaseError(ErrorTypeGenerator, fmt.Sprintf("LLM request failed after %d attempts", attempts), err),
		Model:     model,
		Attempts:  attempts,
		Retryable: retryable,
	}
}

// ErrInvalidMode is returned when a query mode is not recognised
type ErrInvalidMode struct {
	*BaseError
	Mode string
}

func NewInvalidMode(mode string) *ErrInvalidMode {
	return &ErrInvalidMode{
		BaseError: NewBaseError(ErrorTypeGenerator, fmt.Sprintf("unsupported query mode: %s", mode), nil),
		Mode:      mode,
	}
}

// Ingest Errors

// ErrUnsupportedDocument is returned when a corpus file has an unknown extension
type ErrUnsupportedDocument struct {
	*BaseError
	Path string
}

func NewUnsupportedDocument(path string) *ErrUnsupportedDocument {
	return &ErrUnsupportedDocument{
		BaseError: NewBaseError(ErrorTypeIngest, fmt.Sprintf("unsupported file extension: %s", path), nil),
		Path:      path,
	}
}

// ErrDocumentReadFailed is returned when a corpus document cannot be parsed
type ErrDocumentReadFailed struct {
	*BaseError
	Path string
}

func NewDocumentReadFailed(path string, err error) *ErrDocumentReadFailed {
	return &ErrDocumentReadFailed{
		BaseError: NewBaseError(ErrorTypeIngest, fmt.Sprintf("failed to read document: %s", path), err),
		Path:      path,
	}
}

// Transport Errors

// ErrInvalidPayload is returned when a request body cannot be decoded
type ErrInvalidPayload struct {
	*BaseError
	Reason string
}

func NewInvalidPayload(reason string, err error) *ErrInvalidPayload {
	return &ErrInvalidPayload{
		BaseError: NewBaseError(ErrorTypeTransport, fmt.Sprintf("invalid payload: %s", reason), err),
		Reason:    reason,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Helper functions

// IsErrorType checks if an error (or anything it wraps) is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if baseErr := asBase(err); baseErr != nil && baseErr.Type == errType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	var genErr *ErrGeneratorFailed
	if errors.As(err, &genErr) {
		return genErr.Retryable
	}
	// Graph source errors usually clear up on the next reload
	return IsErrorType(err, ErrorTypeGraph)
}

// asBase extracts the embedded BaseError of any typed error in this package.
func asBase(err error) *BaseError {
	switch e := err.(type) {
	case *BaseError:
		return e
	case interface{ base() *BaseError }:
		return e.base()
	}
	return nil
}

func (e *BaseError) base() *BaseError { return e }
