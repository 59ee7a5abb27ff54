// Package report compiles the daily member activity report from a JSON snapshot.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// ListDidNotSend is the document key holding members without a recent update.
	ListDidNotSend = "memberDidNotSend"
	// ListDidSend is the document key holding members that sent an update.
	ListDidSend = "memberDidSend"

	// Month and day may be written with or without a leading zero.
	dateLayout = "2006-1-2"
)

// Document is the parsed input snapshot. Entries stay raw until a compilation
// pass decodes them, so a bad entry is reported with its list and index.
type Document struct {
	DidNotSend []json.RawMessage
	DidSend    []json.RawMessage
}

// MemberRecord is one entry of either member list. A nil field was absent,
// null or not a JSON string.
type MemberRecord struct {
	FullName         *string
	UserID           *string
	LastStatusUpdate *string
	AdmissionYear    *string
	Streak           *string
}

// Parse validates the document shape and extracts both member lists.
func Parse(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	didNotSend, err := extractList(top, ListDidNotSend)
	if err != nil {
		return nil, err
	}
	didSend, err := extractList(top, ListDidSend)
	if err != nil {
		return nil, err
	}

	return &Document{
		DidNotSend: didNotSend,
		DidSend:    didSend,
	}, nil
}

func extractList(top map[string]json.RawMessage, name string) ([]json.RawMessage, error) {
	raw, ok := top[name]
	if !ok {
		return nil, &MissingFieldError{Name: name}
	}
	// null unmarshals into a nil slice without error, so check the token.
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, &MissingFieldError{Name: name}
	}

	list := []json.RawMessage{}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, &MissingFieldError{Name: name}
	}
	return list, nil
}

// DecodeRecord decodes a single list entry. Only entries that are not JSON
// objects fail; wrong-typed fields decode as nil.
func DecodeRecord(raw json.RawMessage) (MemberRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return MemberRecord{}, errors.New("entry is not an object")
	}

	get := func(name string) *string {
		var s *string
		if err := json.Unmarshal(fields[name], &s); err != nil {
			return nil
		}
		return s
	}

	return MemberRecord{
		FullName:         get("fullName"),
		UserID:           get("userID"),
		LastStatusUpdate: get("lastStatusUpdate"),
		AdmissionYear:    get("admissionYear"),
		Streak:           get("streak"),
	}, nil
}

// LastUpdate returns the parsed lastStatusUpdate. Absent or malformed dates
// report false and the record is left out of bucketing and removal.
func (m MemberRecord) LastUpdate() (time.Time, bool) {
	if m.LastStatusUpdate == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, *m.LastStatusUpdate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// recordReader decodes entries of one list and turns missing or unparsable
// required fields into MalformedRecordError values.
type recordReader struct {
	list string
}

func (r recordReader) decode(index int, raw json.RawMessage) (MemberRecord, error) {
	rec, err := DecodeRecord(raw)
	if err != nil {
		return MemberRecord{}, &MalformedRecordError{List: r.list, Index: index, Field: "(entry)", Err: err}
	}
	return rec, nil
}

func (r recordReader) str(index int, field string, v *string) (string, error) {
	if v == nil {
		return "", &MalformedRecordError{List: r.list, Index: index, Field: field}
	}
	return *v, nil
}

func (r recordReader) integer(index int, field string, v *string) (int, error) {
	s, err := r.str(index, field, v)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &MalformedRecordError{List: r.list, Index: index, Field: field, Err: err}
	}
	return n, nil
}

func (r recordReader) id(index int, field string, v *string) (uint64, error) {
	s, err := r.str(index, field, v)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &MalformedRecordError{List: r.list, Index: index, Field: field, Err: err}
	}
	return n, nil
}
