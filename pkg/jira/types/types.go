package types

import (
	"context"
	"io"
	"net/url"
)

// Transport is the capability set an entity needs to talk to the remote
// service. Values returned by the request methods are untyped JSON values.
type Transport interface {
	BuildURI(path string, params map[string]string) (*url.URL, error)
	Request(ctx context.Context, method string, uri *url.URL, body any) (any, error)

	Get(ctx context.Context, path string, params map[string]string) (any, error)
	Post(ctx context.Context, path string, params map[string]string, body any) (any, error)
	Put(ctx context.Context, path string, params map[string]string, body any) (any, error)
	Delete(ctx context.Context, path string, params map[string]string) (any, error)

	Download(ctx context.Context, uri string) ([]byte, error)
	DownloadTo(ctx context.Context, uri string, w io.Writer) (int64, error)
}

type Entity interface {
	Self() string
	ID() string

	// IdentityKey is what two entities of the same kind are compared by.
	// It never depends on the self link, which differs between API versions.
	IdentityKey() string
}
