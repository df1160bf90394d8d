package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"repostack/internal/credentials"
)

// Metadata describes a fetched resource without its body.
type Metadata struct {
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified,omitempty"`
	ETag         string    `json:"etag,omitempty"`
}

// Transport is the fetch surface repository managers use. Implementations
// own their retry/backoff policy; callers see errors verbatim.
type Transport interface {
	// Fetch retrieves the resource body. The caller closes the reader.
	Fetch(ctx context.Context, uri string) (io.ReadCloser, Metadata, error)

	// Stat probes size/timestamp without downloading the body.
	Stat(ctx context.Context, uri string) (Metadata, error)
}

// RawTransport performs the actual network access with explicit
// credentials. The caching layer resolves credentials and delegates here.
type RawTransport interface {
	Fetch(ctx context.Context, uri string, creds credentials.Credentials) (io.ReadCloser, Metadata, error)
	Stat(ctx context.Context, uri string, creds credentials.Credentials) (Metadata, error)
}

// Common transport error types
var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrUnauthorized     = fmt.Errorf("unauthorized")
	ErrRateLimited      = fmt.Errorf("rate limited")
	ErrConnectionFailed = fmt.Errorf("connection failed")
	ErrUnsupportedURI   = fmt.Errorf("unsupported uri")
)

// TransportError carries a sentinel type plus detail about the failed
// request.
type TransportError struct {
	Type    error
	URI     string
	Message string
}

func (e *TransportError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s: %s", e.Type, e.URI, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Type, e.URI)
}

func (e *TransportError) Unwrap() error {
	return e.Type
}

// NewTransportError creates a transport error for a request URI.
func NewTransportError(errType error, uri, message string) *TransportError {
	return &TransportError{Type: errType, URI: uri, Message: message}
}
