package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// Entry is the outcome of one provider call. Exactly one of Data or Err is
// meaningful once the entry has been written.
type Entry struct {
	Data any
	Err  error
}

// Failed reports whether the provider call behind the entry returned an error.
func (e Entry) Failed() bool {
	return e.Err != nil
}

// Empty reports whether the call succeeded and returned no items. A nil Data
// with no error counts as empty. Scalars and structs are never empty.
func (e Entry) Empty() bool {
	if e.Err != nil {
		return false
	}
	switch v := e.Data.(type) {
	case nil:
		return true
	case json.RawMessage:
		return rawEmpty(v)
	}
	rv := reflect.ValueOf(e.Data)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// rawEmpty reports whether a JSON document is null, [] or {}.
func rawEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "[]", "{}":
		return true
	}
	if trimmed[0] != '[' {
		return false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return false
	}
	return len(items) == 0
}

// ErrorMessage returns the entry's error text, or "" when it did not fail.
func (e Entry) ErrorMessage() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// QueryError is the serialisable form of a provider error.
type QueryError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *QueryError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// errorCoder is satisfied by smithy API errors (AWS SDK v2) and similar
// provider error types that carry a machine-readable code.
type errorCoder interface {
	ErrorCode() string
}

// NewQueryError normalises err for storage. A nil err yields nil.
func NewQueryError(err error) *QueryError {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe
	}
	out := &QueryError{Message: err.Error()}
	var coder errorCoder
	if errors.As(err, &coder) {
		out.Code = coder.ErrorCode()
	}
	return out
}

type entryJSON struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *QueryError     `json:"error,omitempty"`
}

// MarshalJSON encodes the entry as {"data": ...} or {"error": {...}}.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Err != nil {
		return json.Marshal(entryJSON{Error: NewQueryError(e.Err)})
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entry data: %w", err)
	}
	return json.Marshal(entryJSON{Data: data})
}

// UnmarshalJSON keeps data as json.RawMessage; Items and Value decode it
// into the caller's type on demand.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Error != nil {
		e.Err = raw.Error
		e.Data = nil
		return nil
	}
	e.Err = nil
	if len(raw.Data) == 0 {
		e.Data = nil
		return nil
	}
	e.Data = raw.Data
	return nil
}

// Items returns the entry data as a slice of T. A single T value is returned
// as a one-element slice. Data restored from a snapshot is decoded from JSON.
func Items[T any](e Entry) ([]T, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	switch v := e.Data.(type) {
	case nil:
		return nil, nil
	case []T:
		return v, nil
	case T:
		return []T{v}, nil
	case json.RawMessage:
		var out []T
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, fmt.Errorf("decode cache items as %T: %w", out, err)
		}
		return out, nil
	}
	var out []T
	if err := roundTrip(e.Data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Value returns the entry data as a single T.
func Value[T any](e Entry) (T, error) {
	var zero T
	if e.Err != nil {
		return zero, e.Err
	}
	switch v := e.Data.(type) {
	case nil:
		return zero, nil
	case T:
		return v, nil
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(v, &out); err != nil {
			return zero, fmt.Errorf("decode cache value as %T: %w", out, err)
		}
		return out, nil
	}
	var out T
	if err := roundTrip(e.Data, &out); err != nil {
		return zero, err
	}
	return out, nil
}

func roundTrip(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("re-encode cache data %T: %w", in, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode cache data as %T: %w", out, err)
	}
	return nil
}
