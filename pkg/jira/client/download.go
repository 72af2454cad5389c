package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/diwise/jira-client/pkg/jira/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (c *jiraClient) Download(ctx context.Context, uri string) ([]byte, error) {
	buf := &bytes.Buffer{}

	_, err := c.DownloadTo(ctx, uri, buf)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DownloadTo streams the raw content at uri into w and returns the number of
// bytes written. The response body is closed before returning, also when
// the read or the write fails half way.
func (c *jiraClient) DownloadTo(ctx context.Context, uri string, w io.Writer) (n int64, err error) {
	target, err := c.downloadURI(uri)
	if err != nil {
		return 0, err
	}

	ctx, span := tracer.Start(ctx, "download-content",
		trace.WithAttributes(attribute.String(TraceAttributeURI, target)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, err := c.send(ctx, http.MethodGet, target, nil, "*/*")
	if err != nil {
		return 0, err
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusMultipleChoices {
		c.dump(ctx, response)
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		err = errors.NewErrorFromResponse(response.StatusCode, reasonPhrase(response), body)
		return 0, err
	}

	n, err = io.Copy(w, response.Body)
	if err != nil {
		err = errors.NewTransportError(response.StatusCode, reasonPhrase(response), nil, fmt.Errorf("download interrupted after %d bytes: %w", n, err))
		return n, err
	}

	return n, nil
}

// downloadURI accepts content links as given by the service. Relative links
// are resolved against the base url, not the REST root.
func (c *jiraClient) downloadURI(uri string) (string, error) {
	ref, err := url.Parse(uri)
	if err != nil || uri == "" {
		return "", errors.NewConstructionError(fmt.Sprintf("invalid content uri %q", uri), err)
	}

	if ref.IsAbs() {
		if ref.Host == "" {
			return "", errors.NewConstructionError(fmt.Sprintf("content uri %q has no host", uri), nil)
		}
		return ref.String(), nil
	}

	return c.base.ResolveReference(ref).String(), nil
}
