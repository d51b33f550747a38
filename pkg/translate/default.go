package translate

import "github.com/Sternrassler/http-cache-client/pkg/xmlfilter"

// Default builds the standard registry: JSON, XML (filtering with
// backend) and YAML.
func Default(backend xmlfilter.Backend) (*Registry, error) {
	b := NewBuilder()
	for _, mt := range JSONMIMETypes {
		b.Register(mt, JSON{})
	}
	xml := NewXML(backend)
	for _, mt := range XMLMIMETypes {
		b.Register(mt, xml)
	}
	for _, mt := range YAMLMIMETypes {
		b.Register(mt, YAML{})
	}
	return b.Build()
}
