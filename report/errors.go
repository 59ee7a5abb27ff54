package report

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is returned when the document is not valid JSON.
	ErrMalformedInput = errors.New("malformed input")
	// ErrMissingField is wrapped by MissingFieldError.
	ErrMissingField = errors.New("missing field")
	// ErrMalformedRecord is wrapped by MalformedRecordError.
	ErrMalformedRecord = errors.New("malformed record")
)

// MissingFieldError reports a top-level member list that is absent or not an array.
type MissingFieldError struct {
	Name string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s is missing or not an array", ErrMissingField, e.Name)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

// MalformedRecordError reports a required per-record field that is absent or
// could not be parsed. Index is the zero-based position within List.
type MalformedRecordError struct {
	List  string
	Index int
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s[%d].%s: %v", ErrMalformedRecord, e.List, e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %s[%d].%s is missing", ErrMalformedRecord, e.List, e.Index, e.Field)
}

func (e *MalformedRecordError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedRecord, e.Err}
	}
	return []error{ErrMalformedRecord}
}
