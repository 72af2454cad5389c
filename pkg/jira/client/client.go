package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/diwise/jira-client/pkg/jira/errors"
	"github.com/diwise/jira-client/pkg/jira/field"
	"github.com/diwise/jira-client/pkg/jira/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Client interface {
	types.Transport

	BaseURL() string
}

const DefaultAPIVersion string = "2"

func Debug(enabled string) func(*jiraClient) {
	return func(c *jiraClient) {
		c.debug = (enabled == "true")
	}
}

func APIVersion(version string) func(*jiraClient) {
	return func(c *jiraClient) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

func Credentials(auth Authenticator) func(*jiraClient) {
	return func(c *jiraClient) {
		if auth != nil {
			c.auth = auth
		}
	}
}

// HTTPClient replaces the instrumented default client. Transport
// settings such as timeouts belong to the supplied client.
func HTTPClient(httpClient *http.Client) func(*jiraClient) {
	return func(c *jiraClient) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL string, options ...func(*jiraClient)) (Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, errors.NewConstructionError(fmt.Sprintf("invalid base url %q", baseURL), err)
	}

	if !base.IsAbs() || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, errors.NewConstructionError(fmt.Sprintf("base url %q must be an absolute http(s) url", baseURL), nil)
	}

	c := &jiraClient{
		base:       base,
		apiVersion: DefaultAPIVersion,
		auth:       AnonymousCredentials(),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, option := range options {
		option(c)
	}

	return c, nil
}

const (
	TraceAttributeMethod    string = "http-method"
	TraceAttributeURI       string = "uri"
	TraceAttributeRequestID string = "request-id"
)

var tracer = otel.Tracer("jira-client")

type jiraClient struct {
	base       *url.URL
	apiVersion string
	auth       Authenticator
	httpClient *http.Client
	debug      bool
}

func (c *jiraClient) BaseURL() string {
	return c.base.String()
}

// BuildURI resolves path against the REST root of the service and appends
// the percent encoded query parameters. Absolute URIs are used as is.
func (c *jiraClient) BuildURI(path string, params map[string]string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, errors.NewConstructionError(fmt.Sprintf("invalid resource path %q", path), err)
	}

	uri := ref
	if !ref.IsAbs() {
		ref.Path = strings.TrimLeft(ref.Path, "/")
		if ref.RawPath != "" {
			ref.RawPath = strings.TrimLeft(ref.RawPath, "/")
		}
		uri = c.restRoot().ResolveReference(ref)
	} else if uri.Host == "" {
		return nil, errors.NewConstructionError(fmt.Sprintf("resource uri %q has no host", path), nil)
	}

	if len(params) > 0 {
		query := uri.Query()
		for k, v := range params {
			query.Set(k, v)
		}
		uri.RawQuery = query.Encode()
	}

	return uri, nil
}

func (c *jiraClient) restRoot() *url.URL {
	return c.base.ResolveReference(&url.URL{Path: "rest/api/" + c.apiVersion + "/"})
}

func (c *jiraClient) Get(ctx context.Context, path string, params map[string]string) (any, error) {
	return c.call(ctx, http.MethodGet, path, params, nil)
}

func (c *jiraClient) Post(ctx context.Context, path string, params map[string]string, body any) (any, error) {
	return c.call(ctx, http.MethodPost, path, params, body)
}

func (c *jiraClient) Put(ctx context.Context, path string, params map[string]string, body any) (any, error) {
	return c.call(ctx, http.MethodPut, path, params, body)
}

func (c *jiraClient) Delete(ctx context.Context, path string, params map[string]string) (any, error) {
	return c.call(ctx, http.MethodDelete, path, params, nil)
}

func (c *jiraClient) call(ctx context.Context, method, path string, params map[string]string, body any) (any, error) {
	uri, err := c.BuildURI(path, params)
	if err != nil {
		return nil, err
	}

	return c.Request(ctx, method, uri, body)
}

// Request sends an authenticated request and returns the response body as an
// untyped JSON value. An empty body is returned as an empty object.
func (c *jiraClient) Request(ctx context.Context, method string, uri *url.URL, body any) (any, error) {
	var err error

	ctx, span := tracer.Start(ctx, strings.ToLower(method)+"-resource",
		trace.WithAttributes(attribute.String(TraceAttributeMethod, method)),
		trace.WithAttributes(attribute.String(TraceAttributeURI, uri.String())),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	var requestBody io.Reader
	if body != nil {
		b, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			err = errors.NewConstructionError("failed to marshal request body", marshalErr)
			return nil, err
		}
		requestBody = bytes.NewReader(b)
	}

	response, err := c.send(ctx, method, uri.String(), requestBody, "application/json")
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		err = errors.NewTransportError(response.StatusCode, reasonPhrase(response), nil, err)
		return nil, err
	}

	if !isSuccess(response.StatusCode) {
		c.dump(ctx, response)
		err = errors.NewErrorFromResponse(response.StatusCode, reasonPhrase(response), responseBody)
		return nil, err
	}

	if len(bytes.TrimSpace(responseBody)) == 0 {
		return map[string]any{}, nil
	}

	result, err := field.DecodeBytes(responseBody)
	if err != nil {
		logging.GetFromContext(ctx).Warn("response body is not valid json", "uri", uri.String(), "err", err.Error())
		err = errors.NewMalformedPayloadError("json", responseBody, err)
		return nil, err
	}

	if obj, ok := result.(map[string]any); ok && field.Has(obj, "errorMessages") {
		if apiErr, ok := errors.ParseAPIError(response.StatusCode, responseBody); ok {
			err = apiErr
			return nil, err
		}
	}

	return result, nil
}

// send builds the request envelope, attaches credentials and dispatches it.
// The caller owns the returned response and must close its body.
func (c *jiraClient) send(ctx context.Context, method, endpoint string, body io.Reader, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.NewConstructionError("failed to create request", err)
	}

	requestID := uuid.New().String()

	req.Header.Set("Accept", accept)
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String(TraceAttributeRequestID, requestID))

	if err = c.auth.Authenticate(req); err != nil {
		return nil, errors.NewConstructionError("failed to authenticate request", err)
	}

	log := logging.GetFromContext(ctx)
	log.Debug("sending request", "method", method, "uri", endpoint, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(0, "", nil, err)
	}

	return resp, nil
}

func (c *jiraClient) dump(ctx context.Context, resp *http.Response) {
	if !c.debug || resp.Request == nil {
		return
	}

	reqbytes, _ := httputil.DumpRequest(resp.Request, false)
	respbytes, _ := httputil.DumpResponse(resp, false)

	log := logging.GetFromContext(ctx)
	log.Error("request failed", "request", redact(string(reqbytes)), "response", string(respbytes))
}

func redact(dump string) string {
	lines := strings.Split(dump, "\r\n")
	for idx, line := range lines {
		if strings.HasPrefix(strings.ToLower(line), "authorization:") {
			lines[idx] = "Authorization: [redacted]"
		}
	}
	return strings.Join(lines, "\r\n")
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}
