package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeMissingInput represents an absent source file or directory
	ErrorTypeMissingInput ErrorType = "missing_input"
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML/Markdown/JSON parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeGeocoding represents geocoding provider errors
	ErrorTypeGeocoding ErrorType = "geocoding"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
)

// PipelineError represents an error raised by one stage of a research run
type PipelineError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error must stop the whole run.
// Block-level problems are never represented as PipelineErrors, so only
// input, configuration and validation failures qualify.
func (e *PipelineError) IsFatal() bool {
	switch e.Type {
	case ErrorTypeMissingInput, ErrorTypeConfiguration, ErrorTypeValidation:
		return true
	default:
		return false
	}
}

// New creates a new PipelineError
func New(errType ErrorType, source, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewMissingInput creates a new missing input error
func NewMissingInput(path string, err error) *PipelineError {
	return New(ErrorTypeMissingInput, path, "input not found", err)
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *PipelineError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *PipelineError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewGeocoding creates a new geocoding error
func NewGeocoding(provider, message string, err error) *PipelineError {
	return New(ErrorTypeGeocoding, provider, message, err)
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *PipelineError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(stream, message string, err error) *PipelineError {
	return New(ErrorTypePublisher, stream, message, err)
}

// NewCache creates a new cache error
func NewCache(key, message string, err error) *PipelineError {
	return New(ErrorTypeCache, key, message, err)
}

// IsType reports whether any error in err's chain is a PipelineError of type t
func IsType(err error, t ErrorType) bool {
	var pe *PipelineError
	for stderrors.As(err, &pe) {
		if pe.Type == t {
			return true
		}
		err = pe.Err
	}
	return false
}
