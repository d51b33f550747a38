package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// State classifies a cache lookup result.
type State int

const (
	// Miss means no entry exists.
	Miss State = iota
	// Fresh entries are served without contacting the origin.
	Fresh
	// StaleRevalidatable entries have expired but hold a validator.
	StaleRevalidatable
	// StaleUnrevalidatable entries have expired and hold no validator.
	StaleUnrevalidatable
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Miss:
		return "miss"
	case Fresh:
		return "fresh"
	case StaleRevalidatable:
		return "stale-revalidatable"
	case StaleUnrevalidatable:
		return "stale-unrevalidatable"
	default:
		return "unknown"
	}
}

// cacheableStatus lists the status codes this cache stores.
var cacheableStatus = map[int]bool{
	http.StatusOK:                   true,
	http.StatusNonAuthoritativeInfo: true,
	http.StatusMultipleChoices:      true,
	http.StatusMovedPermanently:     true,
	http.StatusNotModified:          true,
	http.StatusGone:                 true,
}

// Classify returns the freshness state of e at time now.
func Classify(e *Entry, now time.Time) State {
	if e == nil {
		return Miss
	}
	if e.TTL != nil && now.Before(e.Expires()) {
		return Fresh
	}
	if e.HasValidator() {
		return StaleRevalidatable
	}
	return StaleUnrevalidatable
}

// CacheControl holds parsed Cache-Control directives.
type CacheControl map[string]string

// ParseCacheControl parses Cache-Control header values. Directive names
// are compared case-insensitively and quoted arguments are unquoted.
// When a directive is repeated the first occurrence wins.
func ParseCacheControl(values []string) CacheControl {
	cc := make(CacheControl)
	for _, value := range values {
		for _, directive := range strings.Split(value, ",") {
			directive = strings.TrimSpace(directive)
			if directive == "" {
				continue
			}
			name, arg, _ := strings.Cut(directive, "=")
			name = strings.ToLower(strings.TrimSpace(name))
			if _, exists := cc[name]; exists {
				continue
			}
			cc[name] = strings.Trim(strings.TrimSpace(arg), `"`)
		}
	}
	return cc
}

// Has reports whether the directive is present.
func (cc CacheControl) Has(directive string) bool {
	_, ok := cc[directive]
	return ok
}

// MaxAge returns the max-age directive, and whether it was present and valid.
func (cc CacheControl) MaxAge() (time.Duration, bool) {
	arg, ok := cc["max-age"]
	if !ok {
		return 0, false
	}
	seconds, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		// Invalid freshness information is treated as stale
		return 0, true
	}
	if seconds < 0 {
		seconds = 0
	}
	return time.Duration(seconds) * time.Second, true
}

// forbidsStorage reports whether the response asks not to be cached.
func forbidsStorage(h http.Header) bool {
	cc := ParseCacheControl(h.Values("Cache-Control"))
	if cc.Has("no-store") || cc.Has("no-cache") {
		return true
	}
	if len(cc) == 0 && strings.EqualFold(strings.TrimSpace(h.Get("Pragma")), "no-cache") {
		return true
	}
	return false
}

// FreshnessLifetime computes the TTL of a response from its headers.
// max-age takes precedence; otherwise Expires minus Date is used, with
// receivedAt standing in for a missing Date. The boolean reports whether
// an explicit freshness directive was present at all.
func FreshnessLifetime(h http.Header, receivedAt time.Time) (time.Duration, bool) {
	cc := ParseCacheControl(h.Values("Cache-Control"))
	if maxAge, ok := cc.MaxAge(); ok {
		return maxAge, true
	}

	expiresStr := h.Get("Expires")
	if expiresStr == "" {
		return 0, false
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		// Unparsable Expires means already expired
		return 0, true
	}

	date := receivedAt
	if dateStr := h.Get("Date"); dateStr != "" {
		if parsed, err := http.ParseTime(dateStr); err == nil {
			date = parsed
		}
	}

	ttl := expires.Sub(date)
	if ttl < 0 {
		return 0, true
	}
	return ttl, true
}

// hasFreshnessDirective reports whether max-age or Expires is present.
func hasFreshnessDirective(h http.Header) bool {
	_, explicit := FreshnessLifetime(h, time.Time{})
	return explicit
}

// hasValidatorHeader reports whether the response carries ETag or Last-Modified.
func hasValidatorHeader(h http.Header) bool {
	return h.Get("ETag") != "" || h.Get("Last-Modified") != ""
}

// IsCacheable decides whether a response may be stored.
func IsCacheable(method string, status int, h http.Header) bool {
	if !IsSafeMethod(strings.ToUpper(method)) {
		return false
	}
	if !cacheableStatus[status] {
		return false
	}
	if forbidsStorage(h) {
		return false
	}
	return hasFreshnessDirective(h) || hasValidatorHeader(h)
}

// NewEntry builds a cache entry from a response received at receivedAt.
// It returns false when the response is not cacheable.
// Responses carrying validators but no freshness directive get a zero
// TTL: stored, but never served without revalidation.
func NewEntry(key, method string, status int, h http.Header, body []byte, receivedAt time.Time) (*Entry, bool) {
	if !IsCacheable(method, status, h) {
		return nil, false
	}

	ttl, _ := FreshnessLifetime(h, receivedAt)

	entry := &Entry{
		Key:        key,
		StatusCode: status,
		Header:     h.Clone(),
		StoredAt:   receivedAt,
		TTL:        durationPtr(ttl),
		ETag:       h.Get("ETag"),
	}
	if body != nil {
		entry.Body = append([]byte(nil), body...)
	}
	if lastModStr := h.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}

	return entry, entry.Storable()
}

// headers a 304 must not overwrite on the stored response
var notModifiedSkip = map[string]bool{
	"Content-Length":    true,
	"Content-Encoding":  true,
	"Transfer-Encoding": true,
	"Content-Range":     true,
}

// Refresh builds the replacement for e after a 304 Not Modified
// response. Stored headers are updated with those of the 304, StoredAt
// becomes now and the TTL is recomputed from the merged headers. The
// original entry is left untouched. It returns false when the merged
// headers forbid storage.
func Refresh(e *Entry, notModified http.Header, now time.Time) (*Entry, bool) {
	if e == nil {
		return nil, false
	}

	refreshed := e.Clone()
	if refreshed.Header == nil {
		refreshed.Header = make(http.Header)
	}
	for name, values := range notModified {
		name = http.CanonicalHeaderKey(name)
		if notModifiedSkip[name] {
			continue
		}
		refreshed.Header[name] = append([]string(nil), values...)
	}

	if forbidsStorage(refreshed.Header) {
		return nil, false
	}

	// A stored Date would describe the original response, not this one
	lifetimeHeader := refreshed.Header
	if notModified.Get("Date") == "" && lifetimeHeader.Get("Date") != "" {
		lifetimeHeader = lifetimeHeader.Clone()
		lifetimeHeader.Del("Date")
	}

	ttl, _ := FreshnessLifetime(lifetimeHeader, now)
	refreshed.StoredAt = now
	refreshed.TTL = durationPtr(ttl)

	if etag := notModified.Get("ETag"); etag != "" {
		refreshed.ETag = etag
	}
	if lastModStr := notModified.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			refreshed.LastModified = lastMod
		}
	}

	return refreshed, refreshed.Storable()
}

// ConditionalHeaders returns the validator headers to attach when
// revalidating e. Both are sent when the entry holds both validators.
func ConditionalHeaders(e *Entry) http.Header {
	h := make(http.Header)
	if e == nil {
		return h
	}
	if e.ETag != "" {
		h.Set("If-None-Match", e.ETag)
	}
	if !e.LastModified.IsZero() {
		h.Set("If-Modified-Since", e.LastModified.UTC().Format(http.TimeFormat))
	}
	return h
}
