package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var ErrConstruction = fmt.Errorf("construction error")
var ErrTransport = fmt.Errorf("transport error")
var ErrMalformedPayload = fmt.Errorf("malformed payload")
var ErrAPI = fmt.Errorf("api error")
var ErrNotFound = fmt.Errorf("not found")

// ErrDecoding is returned by the coercion helpers. A decoding failure always
// means that a payload did not have the expected shape.
var ErrDecoding = fmt.Errorf("decoding failed: %w", ErrMalformedPayload)

// Kind classifies a failure so that callers can switch on it instead of
// matching individual error types.
type Kind int

const (
	KindUnknown Kind = iota
	KindConstruction
	KindTransport
	KindMalformedPayload
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindConstruction:
		return "construction"
	case KindTransport:
		return "transport"
	case KindMalformedPayload:
		return "malformed_payload"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// KindOf returns the kind of the classified failure wrapped by err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrAPI):
		return KindAPI
	case errors.Is(err, ErrMalformedPayload):
		return KindMalformedPayload
	case errors.Is(err, ErrConstruction):
		return KindConstruction
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindUnknown
	}
}

// ConstructionError reports that a request or payload could not be built.
// No request has been sent when this error is returned.
type ConstructionError struct {
	msg string
	Err error
}

func NewConstructionError(msg string, err error) error {
	return &ConstructionError{msg: msg, Err: err}
}

func (e *ConstructionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s)", e.msg, e.Err.Error(), ErrConstruction.Error())
	}
	return fmt.Sprintf("%s (%s)", e.msg, ErrConstruction.Error())
}

func (e *ConstructionError) Is(target error) bool { return target == ErrConstruction }
func (e *ConstructionError) Unwrap() error        { return e.Err }

// TransportError reports a network failure (StatusCode is 0) or a response
// with a status code outside of the 2xx range.
type TransportError struct {
	StatusCode int
	Reason     string
	Body       []byte
	Err        error
}

func NewTransportError(code int, reason string, body []byte, err error) error {
	if reason == "" && code != 0 {
		reason = http.StatusText(code)
	}

	return &TransportError{
		StatusCode: code,
		Reason:     reason,
		Body:       body,
		Err:        err,
	}
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("failed to send request: %s (%s)", e.Err.Error(), ErrTransport.Error())
		}
		return fmt.Sprintf("failed to send request (%s)", ErrTransport.Error())
	}

	msg := fmt.Sprintf("unexpected response code %d %s", e.StatusCode, e.Reason)
	if e.StatusCode >= http.StatusOK && e.StatusCode < http.StatusMultipleChoices && e.Err != nil {
		msg = fmt.Sprintf("failed to read response %d %s", e.StatusCode, e.Reason)
	}

	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}

	if len(e.Body) > 0 {
		msg = fmt.Sprintf("%s (body: %s)", msg, bodyFragment(e.Body))
	}

	return fmt.Sprintf("%s (%s)", msg, ErrTransport.Error())
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport || (target == ErrNotFound && e.StatusCode == http.StatusNotFound)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedPayloadError reports a successful response whose body was not of
// the expected JSON shape.
type MalformedPayloadError struct {
	Expected string
	Body     []byte
	Err      error
}

func NewMalformedPayloadError(expected string, body []byte, err error) error {
	return &MalformedPayloadError{
		Expected: expected,
		Body:     body,
		Err:      err,
	}
}

func (e *MalformedPayloadError) Error() string {
	msg := fmt.Sprintf("expected %s payload", e.Expected)
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if len(e.Body) > 0 {
		msg = fmt.Sprintf("%s (body: %s)", msg, bodyFragment(e.Body))
	}
	return msg
}

func (e *MalformedPayloadError) Is(target error) bool { return target == ErrMalformedPayload }
func (e *MalformedPayloadError) Unwrap() error        { return e.Err }

// APIError holds the structured error body returned by the remote service,
//
//	{"errorMessages": ["..."], "errors": {"field": "..."}}
type APIError struct {
	StatusCode  int
	Messages    []string
	FieldErrors map[string]string
}

func (e *APIError) Error() string {
	parts := make([]string, 0, len(e.Messages)+len(e.FieldErrors))
	parts = append(parts, e.Messages...)

	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		parts = append(parts, f+": "+e.FieldErrors[f])
	}

	return fmt.Sprintf("[code: %d] %s (%s)", e.StatusCode, strings.Join(parts, "; "), ErrAPI.Error())
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPI || (target == ErrNotFound && e.StatusCode == http.StatusNotFound)
}

// ParseAPIError extracts a structured error body. The second return value is
// false if the body does not contain any error messages.
func ParseAPIError(code int, body []byte) (*APIError, bool) {
	report := &struct {
		ErrorMessages []any          `json:"errorMessages"`
		Errors        map[string]any `json:"errors"`
	}{}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	if err := dec.Decode(report); err != nil {
		return nil, false
	}

	if len(report.ErrorMessages) == 0 && len(report.Errors) == 0 {
		return nil, false
	}

	apiErr := &APIError{
		StatusCode:  code,
		Messages:    make([]string, 0, len(report.ErrorMessages)),
		FieldErrors: make(map[string]string, len(report.Errors)),
	}

	for _, m := range report.ErrorMessages {
		apiErr.Messages = append(apiErr.Messages, describe(m))
	}

	for f, v := range report.Errors {
		apiErr.FieldErrors[f] = describe(v)
	}

	return apiErr, true
}

// describe renders a value of an error body as text. Values that are not
// strings are kept in their JSON form.
func describe(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case json.Number:
		return value.String()
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(b)
	}
}

// NewErrorFromResponse classifies a non successful response. Client errors
// that carry a structured error body are reported as an *APIError, anything
// else as a *TransportError holding the raw body.
func NewErrorFromResponse(code int, reason string, body []byte) error {
	if code >= http.StatusBadRequest && code < http.StatusInternalServerError {
		if apiErr, ok := ParseAPIError(code, body); ok {
			return apiErr
		}
	}

	return NewTransportError(code, reason, body, nil)
}

// Messages returns the error messages reported by the remote service, or nil
// if err does not wrap an *APIError.
func Messages(err error) []string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Messages
	}
	return nil
}

// StatusCode returns the HTTP status code carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode
	}

	return 0
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// OperationError adds the resource, identity and attempted action to a
// failure without changing its kind.
type OperationError struct {
	Resource string
	Identity string
	Action   string
	Err      error
}

func (e *OperationError) Error() string {
	if e.Identity == "" {
		return fmt.Sprintf("failed to %s %s: %s", e.Action, e.Resource, e.Err.Error())
	}
	return fmt.Sprintf("failed to %s %s %q: %s", e.Action, e.Resource, e.Identity, e.Err.Error())
}

func (e *OperationError) Unwrap() error { return e.Err }

func Wrap(resource, identity, action string, err error) error {
	if err == nil {
		return nil
	}

	return &OperationError{
		Resource: resource,
		Identity: identity,
		Action:   action,
		Err:      err,
	}
}

const maxBodyFragment int = 512

func bodyFragment(body []byte) string {
	if len(body) > maxBodyFragment {
		return string(body[:maxBodyFragment]) + "..."
	}
	return string(body)
}
