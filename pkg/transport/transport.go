// Package transport is the boundary between the caching layer and the
// network. It sends a request, buffers the full response body and returns
// status, headers and body, or an error.
//
// Redirect following, TLS and connection pooling are left to the
// underlying HTTPDoer (typically *http.Client).
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/http-cache-client/pkg/logging"
)

// Request describes a single outbound HTTP request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// Timeout bounds the whole exchange including reading the body.
	// Zero means no per-request timeout beyond the context.
	Timeout time.Duration
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends requests to an origin.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Do implements Transport.
func (f Func) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// An HTTPDoer implements a Do method in the same manner as the standard
// library http.Client.
type HTTPDoer interface {
	Do(r *http.Request) (*http.Response, error)
}

// HTTPTransport is the default Transport built on an HTTPDoer.
type HTTPTransport struct {
	doer   HTTPDoer
	retry  RetryConfig
	logger zerolog.Logger
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithDoer sets the HTTPDoer. The default is an *http.Client with a
// 30 second timeout.
func WithDoer(doer HTTPDoer) Option {
	return func(t *HTTPTransport) {
		t.doer = doer
	}
}

// WithRetry enables retrying requests that failed to connect.
func WithRetry(cfg RetryConfig) Option {
	return func(t *HTTPTransport) {
		t.retry = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// New creates an HTTPTransport.
func New(opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		doer: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry:  NoRetry(),
		logger: logging.NewLogger(logging.ComponentTransport),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var resp *Response
	err := retryWithBackoff(ctx, t.retry, t.logger, func() error {
		var attemptErr error
		resp, attemptErr = t.once(ctx, req)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// once performs a single attempt.
func (t *HTTPTransport) once(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}

	t.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL).
		Msg("Sending request")

	httpResp, err := t.doer.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
	}, nil
}
