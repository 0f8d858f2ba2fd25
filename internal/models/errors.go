package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrNameRequired indicates a required name field is empty.
	ErrNameRequired = errors.New("name is required")

	// ErrURLRequired indicates a required URL field is empty.
	ErrURLRequired = errors.New("url is required")

	// ErrInvalidInputKind indicates an InputSource.Kind outside {MPEGTS_UDP, HLS, HTTP}.
	ErrInvalidInputKind = errors.New("invalid input kind: must be 'MPEGTS_UDP', 'HLS', or 'HTTP'")

	// ErrConfigStoreUnreachable indicates the configuration store could not be
	// enumerated this cycle (§7 ConfigStoreError).
	ErrConfigStoreUnreachable = errors.New("configuration store unreachable")

	// ErrURLParse indicates an InputSource URL could not be parsed for its kind
	// (§7 UrlParseError).
	ErrURLParse = errors.New("input url could not be parsed")
)
