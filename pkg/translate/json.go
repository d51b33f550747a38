package translate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONMIMETypes are served by the JSON translator in Default.
var JSONMIMETypes = []string{"application/json", "text/javascript", "text/json"}

// JSON translates JSON documents. Deserialize yields the generic
// encoding/json shapes: map[string]any, []any, string, json.Number,
// bool or nil.
type JSON struct{}

// Serialize implements Translator.
func (JSON) Serialize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json serialize: %w", err)
	}
	return data, nil
}

// Deserialize implements Translator. Numbers are kept as json.Number so
// large integers survive a round trip.
func (JSON) Deserialize(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("json deserialize: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("json deserialize: trailing data after document")
	}
	return v, nil
}
