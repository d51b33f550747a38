package translate

import (
	"fmt"

	"github.com/clbanning/mxj/v2"

	"github.com/Sternrassler/http-cache-client/pkg/xmlfilter"
)

// XMLMIMETypes are served by the XML translator in Default.
var XMLMIMETypes = []string{"text/xml", "application/xml"}

// XML translates XML documents to and from mxj maps. Attributes are
// keyed with a leading "-" and element text of mixed content with
// "#text", following mxj conventions.
type XML struct {
	backend xmlfilter.Backend
}

// NewXML creates an XML translator whose Filter uses backend. A nil
// backend means filtering is unsupported.
func NewXML(backend xmlfilter.Backend) *XML {
	if backend == nil {
		backend = xmlfilter.Unsupported{}
	}
	return &XML{backend: backend}
}

// Serialize implements Translator. v must be a map with a single root
// key, as produced by Deserialize.
func (x *XML) Serialize(v any) ([]byte, error) {
	var m mxj.Map
	switch val := v.(type) {
	case mxj.Map:
		m = val
	case map[string]any:
		m = mxj.Map(val)
	default:
		return nil, fmt.Errorf("xml serialize: unsupported value type %T", v)
	}

	data, err := m.Xml()
	if err != nil {
		return nil, fmt.Errorf("xml serialize: %w", err)
	}
	return data, nil
}

// Deserialize implements Translator.
func (x *XML) Deserialize(data []byte) (any, error) {
	m, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, fmt.Errorf("xml deserialize: %w", err)
	}
	return map[string]any(m), nil
}

// Filter applies an XPath expression using the configured query backend.
func (x *XML) Filter(data []byte, expr string) (any, error) {
	return x.backend.Filter(data, expr)
}

// Backend returns the configured query backend.
func (x *XML) Backend() xmlfilter.Backend {
	return x.backend
}
