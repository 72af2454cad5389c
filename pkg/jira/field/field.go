// Package field converts untyped JSON values into typed attributes.
//
// A JSON value is whatever Decode produces: map[string]any, []any, string,
// json.Number, bool or nil. Missing keys are never an error, every helper has
// a documented default for an absent or null value.
package field

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/jira-client/pkg/jira/errors"
)

const (
	// DateTimeFormat is the timestamp format used by the remote service
	DateTimeFormat string = "2006-01-02T15:04:05.000-0700"
	DateFormat     string = "2006-01-02"
)

var timestampLayouts = []string{
	DateTimeFormat,
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
}

// Decode parses a single JSON document. Numbers are kept as json.Number so
// that integers survive without loss of precision.
func Decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		if err == io.EOF {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("invalid json: %s (%w)", err.Error(), errors.ErrDecoding)
	}

	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("invalid json: unexpected data after top-level value (%w)", errors.ErrDecoding)
	}

	return value, nil
}

func DecodeBytes(body []byte) (any, error) {
	return Decode(bytes.NewReader(body))
}

// String returns the textual representation of v, or "" if v is null.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Bool returns false for null and for anything that is neither a boolean nor
// the string "true".
func Bool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}

// Int returns 0 for null or an empty string. Non numeric content is a
// decoding error.
func Int(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return parseInt(t.String())
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, nil
		}
		return parseInt(t)
	case float64:
		return int(t), nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	default:
		return 0, fmt.Errorf("expected a number but got %s (%w)", shapeOf(v), errors.ErrDecoding)
	}
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(i), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a number (%w)", s, errors.ErrDecoding)
	}

	return int(f), nil
}

// Time parses a timestamp in the service's format. A null, absent or empty
// value yields nil, never the zero time.
func Time(v any) (*time.Time, error) {
	return parseTime(v, timestampLayouts)
}

// Date parses a plain calendar date such as a release or due date.
func Date(v any) (*time.Time, error) {
	return parseTime(v, []string{DateFormat})
}

func parseTime(v any, layouts []string) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}

		for _, layout := range layouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return &ts, nil
			}
		}

		return nil, fmt.Errorf("%q is not a valid timestamp (%w)", t, errors.ErrDecoding)
	default:
		return nil, fmt.Errorf("expected a timestamp string but got %s (%w)", shapeOf(v), errors.ErrDecoding)
	}
}

// Map returns the members of a JSON object as strings. Null yields an empty
// map and anything other than an object is a decoding error.
func Map(v any) (map[string]string, error) {
	switch t := v.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]any:
		m := make(map[string]string, len(t))
		for key, value := range t {
			m[key] = String(value)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("expected an object but got %s (%w)", shapeOf(v), errors.ErrDecoding)
	}
}

// Object asserts that v is a JSON object.
func Object(v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object but got %s (%w)", shapeOf(v), errors.ErrDecoding)
	}
	return obj, nil
}

// Resources applies factory to every element of a JSON array, in order. Null
// yields an empty slice. A non array value, or an element that is not an
// object, is a decoding error. Factory errors are returned as is.
func Resources[T any](v any, factory func(map[string]any) (T, error)) ([]T, error) {
	if v == nil {
		return []T{}, nil
	}

	elements, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array but got %s (%w)", shapeOf(v), errors.ErrDecoding)
	}

	result := make([]T, 0, len(elements))

	for idx, element := range elements {
		obj, ok := element.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d: expected an object but got %s (%w)", idx, shapeOf(element), errors.ErrDecoding)
		}

		r, err := factory(obj)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", idx, err)
		}

		result = append(result, r)
	}

	return result, nil
}

// Resource applies factory to a single nested object. The second return
// value is false if v is null.
func Resource[T any](v any, factory func(map[string]any) (T, error)) (T, bool, error) {
	var zero T

	if v == nil {
		return zero, false, nil
	}

	obj, err := Object(v)
	if err != nil {
		return zero, false, err
	}

	r, err := factory(obj)
	if err != nil {
		return zero, false, err
	}

	return r, true, nil
}

// Items unwraps an array nested one level under an "items" member. Fields
// that use this shape must call it explicitly.
func Items(v any) any {
	if obj, ok := v.(map[string]any); ok {
		return obj["items"]
	}
	return v
}

// Get returns the value of the first key present in obj. It is used for
// members that have been renamed between API versions.
func Get(obj map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := obj[key]; ok {
			return value
		}
	}
	return nil
}

func Has(obj map[string]any, key string) bool {
	_, ok := obj[key]
	return ok
}

func shapeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number, float64, int, int64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
