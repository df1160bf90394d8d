package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"repostack/internal/credentials"
)

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 30 * time.Second

// HTTPTransport fetches resources over plain HTTP(S). Retry policy is the
// http.Client's own; nothing is retried here.
type HTTPTransport struct {
	httpClient *http.Client
	verbose    bool
}

var _ RawTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates an HTTP transport with the default timeout.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// SetVerbose enables request logging.
func (t *HTTPTransport) SetVerbose(verbose bool) {
	t.verbose = verbose
}

// Fetch downloads a resource, attaching credentials as an Authorization
// header when present.
func (t *HTTPTransport) Fetch(ctx context.Context, uri string, creds credentials.Credentials) (io.ReadCloser, Metadata, error) {
	resp, err := t.do(ctx, http.MethodGet, uri, creds)
	if err != nil {
		return nil, Metadata{}, err
	}

	if err := checkStatus(resp, uri); err != nil {
		resp.Body.Close()
		return nil, Metadata{}, err
	}

	return resp.Body, metadataFromResponse(resp), nil
}

// Stat probes a resource with a HEAD request.
func (t *HTTPTransport) Stat(ctx context.Context, uri string, creds credentials.Credentials) (Metadata, error) {
	resp, err := t.do(ctx, http.MethodHead, uri, creds)
	if err != nil {
		return Metadata{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, uri); err != nil {
		return Metadata{}, err
	}

	return metadataFromResponse(resp), nil
}

func (t *HTTPTransport) do(ctx context.Context, method, uri string, creds credentials.Credentials) (*http.Response, error) {
	if t.verbose {
		fmt.Printf("🌐 %s %s\n", method, uri)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	switch {
	case creds.Token != "":
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	case creds.Username != "":
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, NewTransportError(ErrConnectionFailed, uri, err.Error())
	}

	return resp, nil
}

func checkStatus(resp *http.Response, uri string) error {
	switch {
	case resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewTransportError(ErrUnauthorized, uri, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return NewTransportError(ErrNotFound, uri, resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewTransportError(ErrRateLimited, uri, resp.Status)
	default:
		return NewTransportError(ErrConnectionFailed, uri, resp.Status)
	}
}

func metadataFromResponse(resp *http.Response) Metadata {
	meta := Metadata{
		Size: resp.ContentLength,
		ETag: resp.Header.Get("ETag"),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if parsed, err := http.ParseTime(lm); err == nil {
			meta.LastModified = parsed
		}
	}
	return meta
}
