// Command cache-proxy exposes the caching client over HTTP. Requests to
// /fetch are forwarded to the URL given in the "url" query parameter
// through the response cache.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/beevik/etree"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/http-cache-client/pkg/client"
	"github.com/Sternrassler/http-cache-client/pkg/config"
	"github.com/Sternrassler/http-cache-client/pkg/logging"
	"github.com/Sternrassler/http-cache-client/pkg/metrics"
	"github.com/Sternrassler/http-cache-client/pkg/prefetch"
	"github.com/Sternrassler/http-cache-client/pkg/translate"
	"github.com/Sternrassler/http-cache-client/pkg/xmlfilter"
)

// maxRequestBody bounds bodies forwarded on unsafe requests.
const maxRequestBody = 10 << 20

// forwardedHeaders are copied from the incoming request to the origin.
var forwardedHeaders = []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "User-Agent"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging())
	logger := logging.NewLogger(logging.ComponentProxy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, closeStore, err := client.FromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create caching client")
	}
	defer closeStore()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(c, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", server.Addr).
		Str("cache_backend", cfg.CacheBackend).
		Str("xml_query_backend", cfg.XMLQueryBackend).
		Msg("Starting cache proxy")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Cache proxy stopped")
}

// newRouter builds the proxy routes.
func newRouter(c *client.Client, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request served")
	}))

	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Handler())
	r.HandleFunc("/fetch", fetchHandler(c))
	r.Get("/filter", filterHandler(c))
	r.Post("/warm", warmHandler(prefetch.NewWarmer(c, prefetch.DefaultConfig())))

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// fetchHandler forwards the request to the "url" query parameter through
// the cache and relays the result, adding X-Cache-Status.
func fetchHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			http.Error(w, "missing url parameter", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			http.Error(w, "read request body", http.StatusBadRequest)
			return
		}

		resp, err := c.Execute(r.Context(), &client.Request{
			Method:      r.Method,
			Target:      target,
			Header:      forwardHeaders(r.Header),
			Body:        body,
			BypassCache: r.Header.Get("Cache-Control") == "no-cache",
		})
		if err != nil {
			writeExecuteError(w, r, err)
			return
		}

		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.Header().Set("X-Cache-Status", string(resp.CacheStatus))

		status := resp.StatusCode
		if status == http.StatusNotModified && resp.StoredStatus != 0 && !matchesETag(r.Header, resp.Header) {
			// The 304 answered our own revalidation, not the caller
			status = resp.StoredStatus
		}
		w.WriteHeader(status)

		if r.Method == http.MethodHead || status == http.StatusNotModified {
			return
		}
		if _, err := w.Write(resp.Body); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("Failed to write response")
		}
	}
}

// filterResult is the JSON body returned by /filter.
type filterResult struct {
	Backend string `json:"backend"`
	Matches any    `json:"matches"`
}

// filterHandler fetches "url" through the cache and applies the "xpath"
// expression with the configured XML query backend.
func filterHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		expr := r.URL.Query().Get("xpath")
		if target == "" || expr == "" {
			http.Error(w, "missing url or xpath parameter", http.StatusBadRequest)
			return
		}

		resp, err := c.Get(r.Context(), target, forwardHeaders(r.Header))
		if err != nil {
			writeExecuteError(w, r, err)
			return
		}

		result, err := c.Filter(resp, expr)
		switch {
		case errors.Is(err, xmlfilter.ErrUnsupportedQuery):
			http.Error(w, err.Error(), http.StatusNotImplemented)
			return
		case errors.Is(err, translate.ErrUnsupportedContentType):
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		out := filterResult{Matches: result}
		switch v := result.(type) {
		case string:
			out.Backend = xmlfilter.NameFirst
		case []*etree.Element:
			out.Backend = xmlfilter.NameAll
			out.Matches = elementsToStrings(v)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache-Status", string(resp.CacheStatus))
		if err := json.NewEncoder(w).Encode(out); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("Failed to write response")
		}
	}
}

// warmRequest is the JSON body accepted by /warm.
type warmRequest struct {
	URLs []string `json:"urls"`
}

// warmHandler fetches the listed URLs through the cache in parallel and
// reports a result per URL. Partial failures still answer 200.
func warmHandler(w *prefetch.Warmer) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var req warmRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
			http.Error(rw, "invalid json body", http.StatusBadRequest)
			return
		}
		if len(req.URLs) == 0 {
			http.Error(rw, "urls cannot be empty", http.StatusBadRequest)
			return
		}

		results, err := w.Warm(r.Context(), req.URLs)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("Cache warm incomplete")
		}

		rw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(rw).Encode(results); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("Failed to write response")
		}
	}
}

func writeExecuteError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	if !errors.Is(err, client.ErrTransportFailure) {
		status = http.StatusBadRequest
	}
	hlog.FromRequest(r).Warn().Err(err).Int("status", status).Msg("Request failed")
	http.Error(w, err.Error(), status)
}

// matchesETag reports whether the inbound If-None-Match covers the
// response ETag.
func matchesETag(in, out http.Header) bool {
	inm := in.Get("If-None-Match")
	if inm == "" {
		return false
	}
	if strings.TrimSpace(inm) == "*" {
		return true
	}
	etag := strings.TrimPrefix(out.Get("ETag"), "W/")
	if etag == "" {
		return false
	}
	for _, candidate := range strings.Split(inm, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == etag {
			return true
		}
	}
	return false
}

func forwardHeaders(in http.Header) http.Header {
	out := make(http.Header)
	for _, name := range forwardedHeaders {
		if values := in.Values(name); len(values) > 0 {
			out[name] = append([]string(nil), values...)
		}
	}
	return out
}

func elementsToStrings(elements []*etree.Element) []string {
	out := make([]string, 0, len(elements))
	for _, el := range elements {
		doc := etree.NewDocument()
		doc.SetRoot(el.Copy())
		s, err := doc.WriteToString()
		if err != nil {
			log.Warn().Err(err).Str("tag", el.Tag).Msg("Failed to serialize element")
			continue
		}
		out = append(out, s)
	}
	return out
}
