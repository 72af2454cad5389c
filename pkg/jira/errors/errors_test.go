package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/matryer/is"
)

func TestNotFoundWithErrorMessagesIsAnAPIError(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromResponse(http.StatusNotFound, "Not Found", []byte(`{"errorMessages":["User does not exist"],"errors":{}}`))

	is.Equal(KindOf(err), KindAPI)
	is.Equal(Messages(err), []string{"User does not exist"})
	is.True(errors.Is(err, ErrNotFound))
	is.Equal(StatusCode(err), http.StatusNotFound)
}

func TestFieldErrorsAreKeptOnAPIError(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromResponse(http.StatusBadRequest, "", []byte(`{"errorMessages":[],"errors":{"username":"A user with that username already exists."}}`))

	var apiErr *APIError
	is.True(errors.As(err, &apiErr))
	is.Equal(apiErr.FieldErrors["username"], "A user with that username already exists.")
	is.Equal(err.Error(), "[code: 400] username: A user with that username already exists. (api error)")
}

func TestServerErrorIsATransportError(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromResponse(http.StatusInternalServerError, "", []byte(`{"errorMessages":["boom"]}`))

	var transportErr *TransportError
	is.True(errors.As(err, &transportErr))
	is.Equal(KindOf(err), KindTransport)
	is.Equal(transportErr.Reason, "Internal Server Error")
	is.Equal(string(transportErr.Body), `{"errorMessages":["boom"]}`)
}

func TestUnstructuredClientErrorIsATransportError(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromResponse(http.StatusUnauthorized, "Unauthorized", []byte("<html>login</html>"))

	is.Equal(KindOf(err), KindTransport)
	is.Equal(StatusCode(err), http.StatusUnauthorized)
	is.Equal(Messages(err), nil)
}

func TestDecodingErrorIsAMalformedPayload(t *testing.T) {
	is := is.New(t)

	err := fmt.Errorf("expected an array but got an object (%w)", ErrDecoding)

	is.Equal(KindOf(err), KindMalformedPayload)
	is.True(errors.Is(err, ErrMalformedPayload))
}

func TestWrapKeepsTheKind(t *testing.T) {
	is := is.New(t)

	cause := NewTransportError(0, "", nil, fmt.Errorf("connection reset by peer"))
	err := Wrap("user", "fred", "retrieve", cause)

	is.Equal(KindOf(err), KindTransport)
	is.Equal(err.Error(), `failed to retrieve user "fred": failed to send request: connection reset by peer (transport error)`)

	var opErr *OperationError
	is.True(errors.As(err, &opErr))
	is.Equal(opErr.Action, "retrieve")
}

func TestWrapNilIsNil(t *testing.T) {
	is := is.New(t)
	is.NoErr(Wrap("user", "fred", "retrieve", nil))
}

func TestConstructionErrorKind(t *testing.T) {
	is := is.New(t)

	err := NewConstructionError("invalid resource path", fmt.Errorf("bad escape"))

	is.Equal(KindOf(err), KindConstruction)
	is.Equal(KindConstruction.String(), "construction")
	is.Equal(err.Error(), "invalid resource path: bad escape (construction error)")
}

func TestFieldErrorsThatAreNotStringsKeepTheMessages(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromResponse(http.StatusBadRequest, "", []byte(`{"errorMessages":["Invalid component"],"errors":{"projectId":10,"lead":{"name":"unknown"},"archived":null}}`))

	var apiErr *APIError
	is.True(errors.As(err, &apiErr))
	is.Equal(apiErr.Messages, []string{"Invalid component"})
	is.Equal(apiErr.FieldErrors["projectId"], "10")
	is.Equal(apiErr.FieldErrors["lead"], `{"name":"unknown"}`)
	is.Equal(apiErr.FieldErrors["archived"], "")
}

func TestInterruptedSuccessfulResponseIsNotReportedAsUnexpected(t *testing.T) {
	is := is.New(t)

	err := NewTransportError(http.StatusOK, "OK", nil, fmt.Errorf("download interrupted after 12 bytes"))

	is.Equal(KindOf(err), KindTransport)
	is.Equal(err.Error(), "failed to read response 200 OK: download interrupted after 12 bytes (transport error)")
}

func TestUnexpectedResponseCode(t *testing.T) {
	is := is.New(t)

	err := NewTransportError(http.StatusBadGateway, "", nil, nil)

	is.Equal(err.Error(), "unexpected response code 502 Bad Gateway (transport error)")
}
