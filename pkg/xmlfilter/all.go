package xmlfilter

import (
	"fmt"
	"sort"

	"github.com/beevik/etree"
)

// AllMatches evaluates etree path expressions (the XPath subset etree
// supports: child and descendant steps, predicates on attributes,
// position and text) and returns every matching element.
type AllMatches struct{}

// Name implements Backend.
func (AllMatches) Name() string { return NameAll }

// Filter implements Backend. The result is always a []*etree.Element.
func (b AllMatches) Filter(input []byte, expr string) (any, error) {
	return b.All(input, expr)
}

// All returns the matching elements in document order. The slice is
// empty, not nil, when nothing matches.
func (AllMatches) All(input []byte, expr string) ([]*etree.Element, error) {
	path, err := etree.CompilePath(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	matches := doc.FindElementsPath(path)
	if matches == nil {
		return []*etree.Element{}, nil
	}
	sortDocumentOrder(doc, matches)
	return matches, nil
}

// sortDocumentOrder reorders matches by their pre-order position in doc.
// etree yields descendant matches grouped by path step, not in document order.
func sortDocumentOrder(doc *etree.Document, matches []*etree.Element) {
	if len(matches) < 2 {
		return
	}

	position := make(map[*etree.Element]int)
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		position[el] = len(position)
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(&doc.Element)

	sort.SliceStable(matches, func(i, j int) bool {
		return position[matches[i]] < position[matches[j]]
	})
}
