// Package client provides the caching HTTP request executor. It serves
// fresh responses from a cache.Store, revalidates stale ones with
// conditional requests and invalidates entries after unsafe requests.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/http-cache-client/pkg/cache"
	"github.com/Sternrassler/http-cache-client/pkg/logging"
	"github.com/Sternrassler/http-cache-client/pkg/transport"
	"github.com/Sternrassler/http-cache-client/pkg/translate"
)

// Prometheus metrics for executor operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "httpcache_requests_total",
		Help: "Total requests by method and cache status",
	}, []string{"method", "cache_status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "httpcache_request_duration_seconds",
		Help:    "Request duration in seconds by cache status",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"cache_status"})

	transportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "httpcache_transport_errors_total",
		Help: "Total transport failures by phase",
	}, []string{"phase"})
)

// CacheStatus describes how the cache took part in producing a Response.
type CacheStatus string

const (
	// StatusHit means the response was served from a fresh entry.
	StatusHit CacheStatus = "hit"

	// StatusMiss means the response came from the origin and was stored.
	StatusMiss CacheStatus = "miss"

	// StatusRevalidated means the origin confirmed a stale entry with 304.
	StatusRevalidated CacheStatus = "revalidated"

	// StatusBypass means the cache was skipped, on request or because the
	// backend was unavailable.
	StatusBypass CacheStatus = "bypass"

	// StatusUncacheable means the response came from the origin and was
	// not stored.
	StatusUncacheable CacheStatus = "uncacheable"

	// StatusInvalidated means an unsafe request succeeded and removed the
	// entries for its target.
	StatusInvalidated CacheStatus = "invalidated"
)

// Request is a request to execute.
type Request struct {
	Method string
	Target string
	Header http.Header
	Body   []byte

	// Timeout bounds the transport call. Zero uses the transport default.
	Timeout time.Duration

	// BypassCache skips lookup and storage for safe requests.
	BypassCache bool
}

// Response is the result of Execute.
type Response struct {
	StatusCode  int
	Header      http.Header
	Body        []byte
	CacheStatus CacheStatus

	// StoredStatus is the status of the cached entry the body came from.
	// Zero when the response was not built from a cached entry. After a
	// 304 revalidation StatusCode is 304 while StoredStatus keeps the
	// original status.
	StoredStatus int
}

// Config holds the executor configuration.
type Config struct {
	// Store holds cached entries (REQUIRED).
	Store cache.Store

	// Transport performs origin requests (REQUIRED).
	Transport transport.Transport

	// Registry resolves translators for Decode. Optional.
	Registry *translate.Registry

	// VaryHeaders are request headers that take part in cache keys.
	VaryHeaders []string

	// Logger defaults to the global logger with component "httpcache-client".
	Logger *zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Client is the caching request executor. It is safe for concurrent use.
type Client struct {
	store     cache.Store
	transport transport.Transport
	registry  *translate.Registry
	vary      []string
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates a new Client.
func New(cfg Config) (*Client, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}

	logger := logging.NewLogger(logging.ComponentClient)
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	vary := make([]string, 0, len(cfg.VaryHeaders))
	for _, h := range cfg.VaryHeaders {
		if h = strings.TrimSpace(h); h != "" {
			vary = append(vary, http.CanonicalHeaderKey(h))
		}
	}

	return &Client{
		store:     cfg.Store,
		transport: cfg.Transport,
		registry:  cfg.Registry,
		vary:      vary,
		logger:    logger,
		now:       now,
	}, nil
}

// Execute performs req, consulting and maintaining the cache.
//
// Safe requests (GET, HEAD) are served from a fresh entry without
// contacting the origin, revalidated when the entry is stale but holds
// a validator, and fetched otherwise. Unsafe requests always go to the
// origin; a 2xx or 3xx result removes the cached entries for the target.
//
// Cache backend failures never fail a request: the executor falls back
// to a direct transport call. Transport failures are returned as
// *TransportError.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	startTime := time.Now()
	resp, err := c.execute(ctx, method, req)

	status := "error"
	if err == nil {
		status = string(resp.CacheStatus)
	}
	requestsTotal.WithLabelValues(method, status).Inc()
	requestDuration.WithLabelValues(status).Observe(time.Since(startTime).Seconds())

	return resp, err
}

func (c *Client) execute(ctx context.Context, method string, req *Request) (*Response, error) {
	if !cache.IsSafeMethod(method) {
		return c.executeUnsafe(ctx, method, req)
	}

	if req.BypassCache {
		return c.direct(ctx, method, req)
	}

	key, err := cache.DeriveKey(method, req.Target, req.Header, c.vary)
	if err != nil {
		return nil, fmt.Errorf("derive cache key: %w", err)
	}

	entry, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrCacheMiss):
		entry = nil
	case errors.Is(err, cache.ErrInvalidEntry):
		c.logger.Warn().Err(err).Str("key", key).Msg("Discarding unreadable cache entry")
		entry = nil
	default:
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache lookup failed, bypassing cache")
		return c.direct(ctx, method, req)
	}

	state := cache.Classify(entry, c.now())
	c.logger.Debug().
		Str("method", method).
		Str("target", req.Target).
		Str("state", state.String()).
		Msg("Cache lookup")

	switch state {
	case cache.Fresh:
		return responseFromEntry(entry, entry.StatusCode, entry.Header, StatusHit), nil
	case cache.StaleRevalidatable:
		return c.revalidate(ctx, method, key, req, entry)
	default:
		return c.fetch(ctx, method, key, req, entry)
	}
}

// direct sends req without touching the cache.
func (c *Client) direct(ctx context.Context, method string, req *Request) (*Response, error) {
	resp, err := c.send(ctx, method, req, nil, false)
	if err != nil {
		return nil, err
	}
	return responseFromTransport(resp, StatusBypass), nil
}

// fetch performs a full request for a missing or unusable entry and
// stores the result when it is cacheable.
func (c *Client) fetch(ctx context.Context, method, key string, req *Request, previous *cache.Entry) (*Response, error) {
	resp, err := c.send(ctx, method, req, nil, false)
	if err != nil {
		return nil, err
	}

	entry, ok := cache.NewEntry(key, method, resp.StatusCode, resp.Header, resp.Body, c.now())
	if !ok {
		if previous != nil {
			c.delete(ctx, key)
		}
		return responseFromTransport(resp, StatusUncacheable), nil
	}

	if !c.set(ctx, key, entry) {
		return responseFromTransport(resp, StatusUncacheable), nil
	}
	return responseFromTransport(resp, StatusMiss), nil
}

// revalidate sends a conditional request for a stale entry.
func (c *Client) revalidate(ctx context.Context, method, key string, req *Request, stale *cache.Entry) (*Response, error) {
	cache.ConditionalRequestsSent.Inc()
	c.logger.Debug().
		Str("key", key).
		Str("etag", stale.ETag).
		Msg("Making conditional request")

	resp, err := c.send(ctx, method, req, cache.ConditionalHeaders(stale), true)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		cache.NotModifiedResponses.Inc()

		refreshed, ok := cache.Refresh(stale, resp.Header, c.now())
		if !ok {
			c.delete(ctx, key)
		} else {
			c.set(ctx, key, refreshed)
		}

		header := mergeHeaders(stale.Header, resp.Header)
		if refreshed != nil {
			header = refreshed.Header
		}
		return responseFromEntry(stale, resp.StatusCode, header, StatusRevalidated), nil

	case resp.StatusCode >= http.StatusInternalServerError:
		c.logger.Warn().
			Str("key", key).
			Int("status", resp.StatusCode).
			Msg("Origin error during revalidation, keeping stale entry")
		return responseFromTransport(resp, StatusUncacheable), nil
	}

	entry, ok := cache.NewEntry(key, method, resp.StatusCode, resp.Header, resp.Body, c.now())
	if !ok {
		c.delete(ctx, key)
		return responseFromTransport(resp, StatusUncacheable), nil
	}
	if !c.set(ctx, key, entry) {
		return responseFromTransport(resp, StatusUncacheable), nil
	}
	return responseFromTransport(resp, StatusMiss), nil
}

// executeUnsafe sends an unsafe request and invalidates on success.
func (c *Client) executeUnsafe(ctx context.Context, method string, req *Request) (*Response, error) {
	resp, err := c.send(ctx, method, req, nil, false)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return responseFromTransport(resp, StatusBypass), nil
	}

	c.invalidate(ctx, req, resp.Header)
	return responseFromTransport(resp, StatusInvalidated), nil
}

// invalidate removes the GET and HEAD entries, including all vary
// variants, for the request target and for same-origin Location and
// Content-Location targets of the response.
func (c *Client) invalidate(ctx context.Context, req *Request, respHeader http.Header) {
	targets := []string{req.Target}
	if base, err := url.Parse(req.Target); err == nil {
		for _, name := range []string{"Location", "Content-Location"} {
			if related := sameOriginTarget(base, respHeader.Get(name)); related != "" {
				targets = append(targets, related)
			}
		}
	}

	for _, target := range targets {
		for _, method := range []string{http.MethodGet, http.MethodHead} {
			key, err := cache.DeriveKey(method, target, nil, nil)
			if err != nil {
				c.logger.Debug().Err(err).Str("target", target).Msg("Skipping invalidation")
				continue
			}

			if len(c.vary) > 0 {
				// Every variant of the target goes, whatever the unsafe
				// request's own headers were
				removed, err := c.store.DeletePrefix(ctx, key+":")
				if err != nil {
					c.logger.Warn().Err(err).Str("key", key).Msg("Cache invalidation failed")
					continue
				}
				if removed > 0 {
					cache.Invalidations.Add(float64(removed))
					c.logger.Debug().Str("key", key).Int("variants", removed).Msg("Invalidated cache entries")
				}
				continue
			}

			_, err = c.store.Delete(ctx, key)
			switch {
			case err == nil:
				cache.Invalidations.Inc()
				c.logger.Debug().Str("key", key).Msg("Invalidated cache entry")
			case errors.Is(err, cache.ErrCacheMiss):
			default:
				c.logger.Warn().Err(err).Str("key", key).Msg("Cache invalidation failed")
			}
		}
	}
}

// sameOriginTarget resolves ref against base and returns it only when it
// shares scheme and host with base.
func sameOriginTarget(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if !strings.EqualFold(resolved.Scheme, base.Scheme) || !strings.EqualFold(resolved.Host, base.Host) {
		return ""
	}
	return resolved.String()
}

// send performs the transport call, attaching extra headers on top of the
// caller's.
func (c *Client) send(ctx context.Context, method string, req *Request, extra http.Header, revalidation bool) (*transport.Response, error) {
	header := req.Header.Clone()
	if len(extra) > 0 {
		if header == nil {
			header = make(http.Header)
		}
		for name, values := range extra {
			header[name] = values
		}
	}

	resp, err := c.transport.Do(ctx, &transport.Request{
		Method:  method,
		URL:     req.Target,
		Header:  header,
		Body:    req.Body,
		Timeout: req.Timeout,
	})
	if err != nil {
		phase := "request"
		if revalidation {
			phase = "revalidation"
		}
		transportErrorsTotal.WithLabelValues(phase).Inc()
		c.logger.Error().
			Err(err).
			Str("method", method).
			Str("target", req.Target).
			Str("phase", phase).
			Msg("Transport request failed")
		return nil, &TransportError{
			Method:       method,
			Target:       req.Target,
			Revalidation: revalidation,
			Err:          err,
		}
	}
	return resp, nil
}

func (c *Client) set(ctx context.Context, key string, entry *cache.Entry) bool {
	if err := c.store.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
		return false
	}

	ttl := time.Duration(0)
	if entry.TTL != nil {
		ttl = *entry.TTL
	}
	c.logger.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Msg("Cached response")
	return true
}

func (c *Client) delete(ctx context.Context, key string) {
	if _, err := c.store.Delete(ctx, key); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete cache entry")
	}
}

// Decode deserializes the response body with the translator registered
// for its Content-Type.
func (c *Client) Decode(resp *Response) (any, error) {
	if resp == nil || len(resp.Body) == 0 {
		return nil, ErrNoBody
	}
	if c.registry == nil {
		return nil, &translate.UnsupportedContentTypeError{MIME: translate.MediaType(resp.Header.Get("Content-Type"))}
	}

	t, err := c.registry.ForContentType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	return t.Deserialize(resp.Body)
}

// Filter applies an XPath expression to an XML response using the query
// backend of the translator registered for its Content-Type. Responses
// whose translator cannot filter fail with ErrUnsupportedContentType.
func (c *Client) Filter(resp *Response, expr string) (any, error) {
	if resp == nil || len(resp.Body) == 0 {
		return nil, ErrNoBody
	}
	mediaType := translate.MediaType(resp.Header.Get("Content-Type"))
	if c.registry == nil {
		return nil, &translate.UnsupportedContentTypeError{MIME: mediaType}
	}

	t, err := c.registry.Lookup(mediaType)
	if err != nil {
		return nil, err
	}
	f, ok := t.(filterer)
	if !ok {
		return nil, &translate.UnsupportedContentTypeError{MIME: mediaType}
	}
	return f.Filter(resp.Body, expr)
}

type filterer interface {
	Filter(data []byte, expr string) (any, error)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, target string, header http.Header) (*Response, error) {
	return c.Execute(ctx, &Request{Method: http.MethodGet, Target: target, Header: header})
}

// Head performs a HEAD request.
func (c *Client) Head(ctx context.Context, target string, header http.Header) (*Response, error) {
	return c.Execute(ctx, &Request{Method: http.MethodHead, Target: target, Header: header})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, target string, header http.Header, body []byte) (*Response, error) {
	return c.Execute(ctx, &Request{Method: http.MethodPost, Target: target, Header: header, Body: body})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, target string, header http.Header, body []byte) (*Response, error) {
	return c.Execute(ctx, &Request{Method: http.MethodPut, Target: target, Header: header, Body: body})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, target string, header http.Header, body []byte) (*Response, error) {
	return c.Execute(ctx, &Request{Method: http.MethodPatch, Target: target, Header: header, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, target string, header http.Header) (*Response, error) {
	return c.Execute(ctx, &Request{Method: http.MethodDelete, Target: target, Header: header})
}

func responseFromEntry(e *cache.Entry, status int, header http.Header, cs CacheStatus) *Response {
	resp := &Response{
		StatusCode:   status,
		Header:       header.Clone(),
		CacheStatus:  cs,
		StoredStatus: e.StatusCode,
	}
	if e.Body != nil {
		resp.Body = append([]byte(nil), e.Body...)
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	return resp
}

func responseFromTransport(r *transport.Response, cs CacheStatus) *Response {
	header := r.Header
	if header == nil {
		header = make(http.Header)
	}
	return &Response{
		StatusCode:  r.StatusCode,
		Header:      header,
		Body:        r.Body,
		CacheStatus: cs,
	}
}

func mergeHeaders(stored, fresh http.Header) http.Header {
	merged := stored.Clone()
	if merged == nil {
		merged = make(http.Header)
	}
	for name, values := range fresh {
		merged[name] = append([]string(nil), values...)
	}
	return merged
}
