// Package translate maps MIME types to body translators that convert
// between in-memory values and wire bytes.
//
// A Registry is assembled once with a Builder and is read-only
// afterwards, so it can be shared freely across goroutines.
package translate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedContentType is matched by every UnsupportedContentTypeError.
var ErrUnsupportedContentType = errors.New("unsupported content type")

// UnsupportedContentTypeError reports a MIME type with no registered translator.
type UnsupportedContentTypeError struct {
	MIME string
}

func (e *UnsupportedContentTypeError) Error() string {
	return fmt.Sprintf("no translator registered for %q", e.MIME)
}

// Is lets errors.Is match ErrUnsupportedContentType.
func (e *UnsupportedContentTypeError) Is(target error) bool {
	return target == ErrUnsupportedContentType
}

// Translator converts values to and from a wire format.
type Translator interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte) (any, error)
}

// Builder collects translator registrations.
type Builder struct {
	translators map[string]Translator
	err         error
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{translators: make(map[string]Translator)}
}

// Register associates mimeType with t. Registering an empty or already
// registered MIME type is an error, reported by Build.
func (b *Builder) Register(mimeType string, t Translator) *Builder {
	if b.err != nil {
		return b
	}
	switch {
	case mimeType == "":
		b.err = errors.New("mime type cannot be empty")
	case t == nil:
		b.err = fmt.Errorf("translator for %q cannot be nil", mimeType)
	default:
		if _, exists := b.translators[mimeType]; exists {
			b.err = fmt.Errorf("translator for %q already registered", mimeType)
			return b
		}
		b.translators[mimeType] = t
	}
	return b
}

// Build returns the immutable Registry, or the first registration error.
func (b *Builder) Build() (*Registry, error) {
	if b.err != nil {
		return nil, b.err
	}
	translators := make(map[string]Translator, len(b.translators))
	for k, v := range b.translators {
		translators[k] = v
	}
	return &Registry{translators: translators}, nil
}

// Registry is a read-only MIME type to Translator mapping.
type Registry struct {
	translators map[string]Translator
}

// Lookup returns the translator for an exact MIME type. Matching is
// case-sensitive.
func (r *Registry) Lookup(mimeType string) (Translator, error) {
	t, ok := r.translators[mimeType]
	if !ok {
		return nil, &UnsupportedContentTypeError{MIME: mimeType}
	}
	return t, nil
}

// ForContentType resolves a Content-Type header value, ignoring any
// parameters such as charset.
func (r *Registry) ForContentType(headerValue string) (Translator, error) {
	return r.Lookup(MediaType(headerValue))
}

// MIMETypes returns the registered MIME types.
func (r *Registry) MIMETypes() []string {
	out := make([]string, 0, len(r.translators))
	for k := range r.translators {
		out = append(out, k)
	}
	return out
}

// MediaType strips parameters from a Content-Type header value.
func MediaType(headerValue string) string {
	mediaType, _, _ := strings.Cut(headerValue, ";")
	return strings.TrimSpace(mediaType)
}
