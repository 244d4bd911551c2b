package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelUnavailable means the prediction oracle is not loaded or not reachable.
	ErrModelUnavailable = errors.New("prediction model unavailable")
	// ErrUnknownCategory means a label is outside an encoder's vocabulary.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrNotFound means a stored prediction does not exist.
	ErrNotFound = errors.New("prediction not found")
)

// ConfigurationError lists what is wrong with the lookup tables.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid tables:\n- %s", strings.Join(e.Problems, "\n- "))
}

// MalformedRequestError describes a request payload that cannot be served.
type MalformedRequestError struct {
	Field  string
	Reason string
}

func (e *MalformedRequestError) Error() string {
	if e.Field == "" {
		return "malformed request: " + e.Reason
	}
	return fmt.Sprintf("malformed request: field %q %s", e.Field, e.Reason)
}

// Malformed returns a MalformedRequestError for field.
func Malformed(field, reason string) error {
	return &MalformedRequestError{Field: field, Reason: reason}
}

// IsMalformed reports whether err is or wraps a MalformedRequestError.
func IsMalformed(err error) bool {
	var m *MalformedRequestError
	return errors.As(err, &m)
}
