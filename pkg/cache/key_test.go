package cache

import (
	"errors"
	"net/http"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		header http.Header
		vary   []string
		want   string
	}{
		{
			name:   "simple get",
			method: http.MethodGet,
			target: "https://api.example.com/widgets/1",
			want:   "httpcache:GET:https://api.example.com/widgets/1",
		},
		{
			name:   "lower-case method",
			method: "get",
			target: "https://api.example.com/widgets/1",
			want:   "httpcache:GET:https://api.example.com/widgets/1",
		},
		{
			name:   "head has its own key",
			method: http.MethodHead,
			target: "https://api.example.com/widgets/1",
			want:   "httpcache:HEAD:https://api.example.com/widgets/1",
		},
		{
			name:   "query params sorted",
			method: http.MethodGet,
			target: "https://api.example.com/widgets?page=2&order=asc",
			want:   "httpcache:GET:https://api.example.com/widgets?order=asc&page=2",
		},
		{
			name:   "host case and default port normalized",
			method: http.MethodGet,
			target: "HTTPS://API.Example.com:443",
			want:   "httpcache:GET:https://api.example.com/",
		},
		{
			name:   "fragment dropped",
			method: http.MethodGet,
			target: "http://example.com/a#section",
			want:   "httpcache:GET:http://example.com/a",
		},
		{
			name:   "vary headers sorted and canonicalized",
			method: http.MethodGet,
			target: "https://api.example.com/widgets",
			header: http.Header{
				"Accept":          []string{"application/xml"},
				"Accept-Language": []string{"de"},
			},
			vary: []string{"accept-language", "accept"},
			want: "httpcache:GET:https://api.example.com/widgets:Accept=application/xml:Accept-Language=de",
		},
		{
			name:   "vary header absent from request",
			method: http.MethodGet,
			target: "https://api.example.com/widgets",
			vary:   []string{"Accept"},
			want:   "httpcache:GET:https://api.example.com/widgets:Accept=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveKey(tt.method, tt.target, tt.header, tt.vary)
			if err != nil {
				t.Fatalf("DeriveKey() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DeriveKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeriveKey_UnsafeMethod(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		_, err := DeriveKey(method, "https://api.example.com/widgets", nil, nil)
		if !errors.Is(err, ErrUnsafeMethod) {
			t.Errorf("DeriveKey(%s) error = %v, want ErrUnsafeMethod", method, err)
		}
	}
}

// TestDeriveKey_Determinism ensures logically identical requests share a key
func TestDeriveKey_Determinism(t *testing.T) {
	a, err := DeriveKey(http.MethodGet, "https://example.com/w?b=2&a=1&a=0", http.Header{"Accept": []string{"text/xml"}}, []string{"Accept"})
	if err != nil {
		t.Fatal(err)
	}

	h := http.Header{}
	h.Set("accept", "text/xml")

	for i := 0; i < 10; i++ {
		b, err := DeriveKey("GET", "https://EXAMPLE.com/w?a=0&a=1&b=2", h, []string{"accept"})
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, b, a)
		}
	}
}

func TestNormalizeTarget_Invalid(t *testing.T) {
	if _, err := NormalizeTarget("http://[::1"); err == nil {
		t.Error("NormalizeTarget() should fail on malformed URL")
	}
}

// TestDeriveKey_UnparsableQuery ensures queries url.ParseQuery rejects
// still take part in the key.
func TestDeriveKey_UnparsableQuery(t *testing.T) {
	targets := []string{
		"https://origin.test/search",
		"https://origin.test/search?q=a;b",
		"https://origin.test/search?q=a;c",
		"https://origin.test/search?q=%zz",
		"https://origin.test/search?q=%zz&p=1",
	}

	seen := make(map[string]string)
	for _, target := range targets {
		key, err := DeriveKey(http.MethodGet, target, nil, nil)
		if err != nil {
			t.Fatalf("DeriveKey(%q) error = %v", target, err)
		}
		if other, ok := seen[key]; ok {
			t.Errorf("DeriveKey(%q) = %q, same key as %q", target, key, other)
		}
		seen[key] = target
	}
}

func TestNormalizeTarget_Query(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"sorted", "https://origin.test/s?b=2&a=1", "https://origin.test/s?a=1&b=2"},
		{"semicolon kept", "https://origin.test/s?q=a;b", "https://origin.test/s?q=a;b"},
		{"bad escape kept", "https://origin.test/s?q=%zz", "https://origin.test/s?q=%zz"},
		{"raw segments sorted", "https://origin.test/s?q=a;b&p=1", "https://origin.test/s?p=1&q=a;b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTarget(tt.target)
			if err != nil {
				t.Fatalf("NormalizeTarget() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeTarget() = %q, want %q", got, tt.want)
			}
		})
	}
}
