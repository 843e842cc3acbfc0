package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("not found")

// ValidationError carries field-level messages for bad user input so callers
// can redisplay them next to the offending field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records msg for field, keeping the first message per field.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// Err returns e when it holds at least one message, nil otherwise.
func (e *ValidationError) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConversionError reports a failed currency conversion. Transaction creation
// is aborted when it occurs.
type ConversionError struct {
	From string
	To   string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s to %s: %v", e.From, e.To, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// MalformedRecordError describes a stored automation rule that cannot be
// materialized.
type MalformedRecordError struct {
	ID     int64
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed automation %d: %s", e.ID, e.Reason)
}

// ParseError is returned when a time-window expression cannot be understood.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse period %q: %s", e.Input, e.Reason)
}
