package translate

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLMIMETypes are served by the YAML translator in Default.
var YAMLMIMETypes = []string{"application/yaml", "application/x-yaml", "text/yaml"}

// YAML translates YAML documents.
type YAML struct{}

// Serialize implements Translator.
func (YAML) Serialize(v any) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yaml serialize: %w", err)
	}
	return data, nil
}

// Deserialize implements Translator.
func (YAML) Deserialize(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml deserialize: %w", err)
	}
	return v, nil
}
