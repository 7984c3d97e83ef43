package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrEmptyQuery indicates that a query string was empty. It is
	// returned before any external call is made.
	ErrEmptyQuery = errors.New("query text cannot be empty")

	// ErrNoDocument indicates that no document path was supplied.
	ErrNoDocument = errors.New("no document path provided")

	// ErrReportUnavailable marks a ledger summary that could not be
	// computed, typically because the ledger file was unreadable or not a
	// JSON list. It is informational, not fatal.
	ErrReportUnavailable = errors.New("report unavailable")
)

// StorageError describes a failure while reading or writing one of the
// pipeline's durable files (answer cache, ledger, snapshot). It carries the
// path and operation so callers can report what failed without string
// matching.
type StorageError struct {
	// Path is the file the operation targeted.
	Path string

	// Op names the failed operation, such as "load" or "append".
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: op=%s, path=%s, err=%v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As.
func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError creates a StorageError for the given file and operation.
func NewStorageError(path, op string, err error) *StorageError {
	return &StorageError{Path: path, Op: op, Err: err}
}

// ConfigError indicates missing or invalid configuration, most commonly an
// absent API key. It is returned to the caller rather than exiting the
// process, so the hosting application decides exit behavior.
type ConfigError struct {
	// Key is the configuration field or environment variable involved.
	Key string

	// Reason describes what is wrong with it.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// NewConfigError creates a ConfigError for the given key.
func NewConfigError(key, reason string) *ConfigError {
	return &ConfigError{Key: key, Reason: reason}
}
