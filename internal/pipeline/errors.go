package pipeline

import "fmt"

// ConfigurationError reports an invalid request parameter. It is returned
// before any work starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// GenerationError wraps a failure of the rendering service. The run is
// abandoned and no partial result is returned.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "diagram generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }
