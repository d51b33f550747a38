package cache

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Entry represents a stored HTTP response together with the metadata
// needed to decide freshness and to revalidate it.
//
// Entries are immutable once handed to a Store. Updates build a new
// Entry and replace the stored one wholesale.
type Entry struct {
	// Key is the derived cache key the entry is stored under
	Key string `json:"key"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Header holds the response headers (lookups are case-insensitive)
	Header http.Header `json:"header"`

	// Body is the raw response body
	Body []byte `json:"body"`

	// StoredAt is when the response was received or last revalidated
	StoredAt time.Time `json:"stored_at"`

	// TTL is the freshness lifetime. Nil means no freshness information.
	TTL *time.Duration `json:"ttl,omitempty"`

	// ETag for conditional requests (If-None-Match). Empty means absent.
	ETag string `json:"etag,omitempty"`

	// LastModified for conditional requests (If-Modified-Since). Zero means absent.
	LastModified time.Time `json:"last_modified,omitempty"`
}

// HasValidator reports whether the entry can be revalidated with a
// conditional request.
func (e *Entry) HasValidator() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}

// Storable reports whether the entry carries anything to key freshness
// or revalidation off. Entries without TTL and validators are never stored.
func (e *Entry) Storable() bool {
	return e != nil && (e.TTL != nil || e.HasValidator())
}

// Expires returns the instant the entry becomes stale.
// The zero time is returned when the entry has no TTL.
func (e *Entry) Expires() time.Time {
	if e.TTL == nil {
		return time.Time{}
	}
	return e.StoredAt.Add(*e.TTL)
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Header = e.Header.Clone()
	if e.Body != nil {
		c.Body = append([]byte(nil), e.Body...)
	}
	if e.TTL != nil {
		ttl := *e.TTL
		c.TTL = &ttl
	}
	return &c
}

// encodeEntry serializes an entry for byte-oriented backends.
func encodeEntry(e *Entry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}
	return data, nil
}

// decodeEntry is the inverse of encodeEntry.
func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &e, nil
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
