// Package util provides logging, error types and small concurrency helpers
// shared across the library.
package util

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages
var (
	ErrNotConnected  = errors.New("switch not connected")
	ErrNotPrimary    = errors.New("switch is not primary")
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrClosed        = errors.New("resource is closed")
	ErrNoPipeline    = errors.New("no forwarding pipeline config")
)

// SchemaError reports a problem with a P4Info document or a name/id lookup
// against it.
type SchemaError struct {
	Kind   string // entity kind, e.g. "table", "action"
	Name   string // offending name or id
	Detail string
}

func (e *SchemaError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, e.Detail)
	}
	return fmt.Sprintf("no %s named %q", e.Kind, e.Name)
}

func (e *SchemaError) Unwrap() error {
	if e.Detail != "" {
		return ErrInvalidConfig
	}
	return ErrNotFound
}

// NewSchemaError creates a schema error with detail text.
func NewSchemaError(kind, name, detail string) *SchemaError {
	return &SchemaError{Kind: kind, Name: name, Detail: detail}
}

// NewLookupError creates a schema error for a failed name lookup.
func NewLookupError(kind, name string) *SchemaError {
	return &SchemaError{Kind: kind, Name: name}
}

// EncodeError reports a value that cannot be encoded to (or decoded from)
// its canonical wire representation.
type EncodeError struct {
	What     string // field or parameter being encoded
	Value    any
	Bitwidth int
	Reason   string
}

func (e *EncodeError) Error() string {
	if e.What != "" {
		return fmt.Sprintf("%s: cannot encode %v as %d bits: %s", e.What, e.Value, e.Bitwidth, e.Reason)
	}
	return fmt.Sprintf("cannot encode %v as %d bits: %s", e.Value, e.Bitwidth, e.Reason)
}

// NewEncodeError creates an encode error.
func NewEncodeError(what string, value any, bitwidth int, reason string) *EncodeError {
	return &EncodeError{What: what, Value: value, Bitwidth: bitwidth, Reason: reason}
}
