// Package errs defines the error taxonomy shared by the sanitization
// engine. Configuration and crypto errors are hard failures; structural
// errors degrade to skipping the offending object.
package errs

import "fmt"

// ConfigurationError reports invalid settings, detected before any
// document mutation.
type ConfigurationError struct {
	Phase  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: invalid configuration: %s", e.Phase, e.Reason)
}

// Configf builds a ConfigurationError for phase.
func Configf(phase, format string, args ...interface{}) error {
	return &ConfigurationError{Phase: phase, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError reports malformed input found mid-operation, such as
// a pattern that fails to compile.
type ValidationError struct {
	Phase  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Phase, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Phase, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validationf builds a ValidationError for phase wrapping err.
func Validationf(phase string, err error, format string, args ...interface{}) error {
	return &ValidationError{Phase: phase, Reason: fmt.Sprintf(format, args...), Err: err}
}

// StructuralError reports a dangling reference or a missing expected
// entry. Callers record it and continue with the next object.
type StructuralError struct {
	Phase  string
	Detail string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: structural error: %s", e.Phase, e.Detail)
}

// Structuralf builds a StructuralError for phase.
func Structuralf(phase, format string, args ...interface{}) error {
	return &StructuralError{Phase: phase, Detail: fmt.Sprintf(format, args...)}
}

// CryptoError reports a key construction or signature failure. It is
// always fatal for metadata processing.
type CryptoError struct {
	Phase string
	Op    string
	Err   error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Phase, e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// Cryptof builds a CryptoError for phase and operation op wrapping err.
func Cryptof(phase, op string, err error) error {
	return &CryptoError{Phase: phase, Op: op, Err: err}
}
