// Package xmlfilter provides interchangeable XPath-style query engines
// used to extract parts of an XML document.
//
// The backends deliberately keep different result contracts:
//
//   - FirstMatch returns the first matching node serialized as XML text,
//     or "" when nothing matches.
//   - AllMatches returns every matching element as a structured
//     []*etree.Element in document order.
//   - Unsupported always fails with ErrUnsupportedQuery.
//
// The active backend is chosen once at startup with ByName.
package xmlfilter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedQuery is returned by backends that cannot evaluate
	// arbitrary XPath expressions.
	ErrUnsupportedQuery = errors.New("xpath filtering not implemented by this backend")

	// ErrInvalidDocument is returned when the input is not well-formed XML.
	ErrInvalidDocument = errors.New("invalid xml document")

	// ErrInvalidExpression is returned when the XPath expression does not compile.
	ErrInvalidExpression = errors.New("invalid xpath expression")
)

// Backend filters an XML document with an XPath expression. The
// concrete result type depends on the backend; see the package docs.
//
// Backends are stateless and safe for concurrent use.
type Backend interface {
	Name() string
	Filter(input []byte, expr string) (any, error)
}

// Backend names accepted by ByName.
const (
	NameFirst = "first"
	NameAll   = "all"
	NameNone  = "none"
)

// ByName resolves a configured backend name. The single-letter aliases
// A, B and C map to first, all and none.
func ByName(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameFirst, "a":
		return FirstMatch{}, nil
	case NameAll, "b":
		return AllMatches{}, nil
	case NameNone, "c":
		return Unsupported{}, nil
	default:
		return nil, fmt.Errorf("unknown xml query backend %q", name)
	}
}
