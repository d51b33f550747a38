package xmlfilter

// Unsupported stands in for XML engines that can parse documents but
// cannot evaluate arbitrary XPath. Every call fails; callers must never
// mistake that for an empty result.
type Unsupported struct{}

// Name implements Backend.
func (Unsupported) Name() string { return NameNone }

// Filter implements Backend and always returns ErrUnsupportedQuery.
func (Unsupported) Filter(input []byte, expr string) (any, error) {
	return nil, ErrUnsupportedQuery
}
