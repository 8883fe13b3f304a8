// Package errs holds the error taxonomy shared by generation and validation.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError is fatal: the run stops before any per-connection work.
type ConfigurationError struct {
	Key   string
	Cause error
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration error: %v", e.Cause)
	}
	return fmt.Sprintf("configuration error at %q: %v", e.Key, e.Cause)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// ConnectivityError is scoped to one connection or target. Siblings keep going.
type ConnectivityError struct {
	Connection string
	Target     string
	Cause      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connection %q: cannot reach %s: %v", e.Connection, e.Target, e.Cause)
}

func (e *ConnectivityError) Unwrap() error { return e.Cause }

// SchemaDriftError reports generated objects that are missing at validation time.
type SchemaDriftError struct {
	Object   string
	Expected []string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("no %s found matching %v", e.Object, e.Expected)
}

// ValidationTimeoutError marks a check that exhausted its retry budget.
type ValidationTimeoutError struct {
	Check    string
	Attempts int
	Elapsed  time.Duration
	Cause    error
}

func (e *ValidationTimeoutError) Error() string {
	return fmt.Sprintf("check %s failed after %d attempts (%s): %v", e.Check, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Cause)
}

func (e *ValidationTimeoutError) Unwrap() error { return e.Cause }

// Configuration wraps cause as a ConfigurationError for key.
func Configuration(key string, cause error) error {
	return &ConfigurationError{Key: key, Cause: cause}
}

// IsConfiguration reports whether err carries a ConfigurationError.
func IsConfiguration(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// IsConnectivity reports whether err carries a ConnectivityError.
func IsConnectivity(err error) bool {
	var e *ConnectivityError
	return errors.As(err, &e)
}

// IsSchemaDrift reports whether err carries a SchemaDriftError.
func IsSchemaDrift(err error) bool {
	var e *SchemaDriftError
	return errors.As(err, &e)
}
