package cache

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ErrUnsafeMethod is returned when a key is requested for a method that
// is not eligible for caching.
var ErrUnsafeMethod = errors.New("method is not cacheable")

// KeyPrefix namespaces every derived key.
const KeyPrefix = "httpcache"

// IsSafeMethod reports whether the method is GET or HEAD.
func IsSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// DeriveKey generates a deterministic cache key for a request.
// Format: httpcache:METHOD:normalized-url:header1=val1:header2=val2
//
// Example:
//
//	httpcache:GET:https://api.example.com/widgets?a=1&b=2:Accept=application/json
//
// Only the request headers named in vary take part in the key. Header
// names are canonicalized and sorted, so the order of vary is irrelevant.
func DeriveKey(method, target string, header http.Header, vary []string) (string, error) {
	method = strings.ToUpper(method)
	if !IsSafeMethod(method) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeMethod, method)
	}

	normalized, err := NormalizeTarget(target)
	if err != nil {
		return "", err
	}

	parts := []string{KeyPrefix, method, normalized}

	if len(vary) > 0 {
		names := make([]string, 0, len(vary))
		seen := make(map[string]bool, len(vary))
		for _, name := range vary {
			name = http.CanonicalHeaderKey(strings.TrimSpace(name))
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(header.Values(name), ",")))
		}
	}

	return strings.Join(parts, ":"), nil
}

// NormalizeTarget returns a canonical form of an absolute or
// origin-relative request target: lower-cased scheme and host, default
// ports removed, empty path replaced by "/", query sorted, fragment dropped.
func NormalizeTarget(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target %q: %w", target, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	u.RawFragment = ""

	u.RawQuery = normalizeQuery(u.RawQuery)

	return u.String(), nil
}

// normalizeQuery sorts query params for determinism (values too,
// url.Values.Encode only sorts by name). A query that does not parse
// cleanly, such as one containing ";" or a bad escape, keeps every raw
// segment and only has the segment order sorted.
func normalizeQuery(raw string) string {
	if raw == "" {
		return ""
	}

	query, err := url.ParseQuery(raw)
	if err != nil {
		segments := strings.Split(raw, "&")
		sort.Strings(segments)
		return strings.Join(segments, "&")
	}

	for name := range query {
		sort.Strings(query[name])
	}
	return query.Encode()
}
