// Package errors provides centralized error handling with categories and optional telemetry
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for categorization and status mapping
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryConflict       ErrorCategory = "conflict"
	CategoryNotFound       ErrorCategory = "not-found"
	CategoryUpstream       ErrorCategory = "upstream"
	CategoryNetwork        ErrorCategory = "network"
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryModelInit      ErrorCategory = "model-initialization"
	CategoryModelLoad      ErrorCategory = "model-loading"
	CategoryModelInference ErrorCategory = "model-inference"
	CategoryImageDecode    ErrorCategory = "image-decode"
	CategoryAudio          ErrorCategory = "audio-processing"
	CategoryTranscription  ErrorCategory = "transcription"
	CategoryScraper        ErrorCategory = "scraper"
	CategoryDatabase       ErrorCategory = "database"
	CategoryFileIO         ErrorCategory = "file-io"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryLimit          ErrorCategory = "limit"
	CategoryGeneric        ErrorCategory = "generic"
)

// Priority constants for error prioritization
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when no component was set.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where the error occurred
	Category  ErrorCategory  // Error category
	Priority  string         // Explicit priority override (optional)
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred

	mu       sync.RWMutex
	reported bool
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, otherwise defers to the wrapped error
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// EffectivePriority returns the explicit priority or the category default
func (ee *EnhancedError) EffectivePriority() string {
	if ee.Priority != "" {
		return ee.Priority
	}
	switch ee.Category {
	case CategoryModelInit, CategoryModelLoad, CategoryConfiguration:
		return PriorityCritical
	case CategoryDatabase, CategoryModelInference, CategoryFileIO:
		return PriorityHigh
	case CategoryUpstream, CategoryNetwork, CategoryTimeout, CategoryScraper, CategoryTranscription:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// MarkReported marks this error as reported to telemetry
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.reported = true
}

// IsReported returns whether this error has been reported
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New creates a new error with enhanced context
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error with enhanced context
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets an explicit priority; unknown values fall back to medium
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	case "":
	default:
		eb.priority = PriorityMedium
	}
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Timing adds performance timing context
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	return eb.Context("operation", operation).Context("duration_ms", duration.Milliseconds())
}

// Build creates the EnhancedError and hands it to the telemetry reporter, if any
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
	if ee.Err == nil {
		ee.Err = stderrors.New("unspecified error")
	}
	if ee.Component == "" {
		ee.Component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = categoryOf(eb.err)
	}

	reportToTelemetry(ee)
	return ee
}

// categoryOf inherits the category of a wrapped EnhancedError
func categoryOf(err error) ErrorCategory {
	var enhErr *EnhancedError
	if stderrors.As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}
	return CategoryGeneric
}

// ValidationError creates a validation error carrying message as-is
func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).
		Category(CategoryValidation).
		Build()
}

// NewStd creates a new standard error (passthrough to standard library)
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target (passthrough to standard library)
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target (passthrough to standard library)
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling Unwrap on err (passthrough to standard library)
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors (passthrough to standard library)
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if an error is an EnhancedError with the specified category.
func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	return As(err, &enhancedErr) && enhancedErr.Category == category
}

// CategoryOf returns the category of the outermost EnhancedError in err's chain,
// or CategoryGeneric.
func CategoryOf(err error) ErrorCategory {
	return categoryOf(err)
}

