package types

import (
	"errors"
	"fmt"
	"strings"
)

// Store errors.
var (
	ErrNotFound     = errors.New("entity not found")
	ErrInvalidID    = errors.New("invalid entity ID")
	ErrNilEntity    = errors.New("entity is nil")
	ErrNotPersisted = errors.New("entity is not persisted")
	ErrStoreClosed  = errors.New("store is closed")
	ErrNotLocal     = errors.New("operation needs local policy")
)

// Backend lifecycle errors.
var (
	ErrDetached        = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)

// HTTP error kinds produced by an ErrorHandler.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrRemoteNotFound   = errors.New("remote resource not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrUnprocessable    = errors.New("unprocessable entity")
	ErrServer           = errors.New("server error")
	ErrThirdParty       = errors.New("third party error")
	ErrAppValidation    = errors.New("application validation error")
	ErrAPIMessage       = errors.New("api message")
)

// HTTPError is a non-2xx response from the remote API. Kind is one of the
// HTTP error kinds above, so callers can test with errors.Is.
type HTTPError struct {
	Status  int
	Kind    error
	Message string
	Fields  map[string][]string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s: %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Kind)
}

// Unwrap returns the error kind.
func (e *HTTPError) Unwrap() error {
	return e.Kind
}

// FieldError is a single field that could not be mapped during hydration.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

// HydrationError reports the fields that took their default because the raw
// value had the wrong type. The hydrated value is still returned alongside.
type HydrationError struct {
	Fields []FieldError
}

func (e *HydrationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "hydrate: " + strings.Join(parts, "; ")
}

// Add appends a field failure.
func (e *HydrationError) Add(field string, err error) {
	e.Fields = append(e.Fields, FieldError{Field: field, Err: err})
}

// Merge appends the failures of other, prefixing each field with prefix.
func (e *HydrationError) Merge(prefix string, other error) {
	var he *HydrationError
	if !errors.As(other, &he) {
		if other != nil {
			e.Add(prefix, other)
		}
		return
	}
	for _, f := range he.Fields {
		name := f.Field
		if prefix != "" {
			name = prefix + "." + name
		}
		e.Add(name, f.Err)
	}
}

// OrNil returns e when it holds failures and nil otherwise.
func (e *HydrationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ValidationError carries the fields rejected by a Validator.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}
