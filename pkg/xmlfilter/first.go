package xmlfilter

import (
	"bytes"
	"fmt"

	"github.com/antchfx/xmlquery"
)

// FirstMatch evaluates full XPath 1.0 with antchfx/xmlquery and returns
// only the first match.
type FirstMatch struct{}

// Name implements Backend.
func (FirstMatch) Name() string { return NameFirst }

// Filter implements Backend. The result is always a string.
func (b FirstMatch) Filter(input []byte, expr string) (any, error) {
	return b.First(input, expr)
}

// First returns the first node matching expr serialized as XML, or ""
// when nothing matches.
func (FirstMatch) First(input []byte, expr string) (string, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(input))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	node, err := xmlquery.Query(doc, expr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	if node == nil {
		return "", nil
	}
	return node.OutputXML(true), nil
}
