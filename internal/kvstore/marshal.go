package kvstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// encodeDoc converts a document value to the JSON TEXT stored in the doc
// column. HTML escaping is disabled so user text (notes, titles) is stored
// as written.
func encodeDoc(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	doc := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(doc, "{") {
		return "", fmt.Errorf("encode document: value is not a JSON object")
	}
	return doc, nil
}

// keyFromDoc reads the inline primary key at keyPath.
// A missing or empty key yields "".
func keyFromDoc(doc string, keyPath string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &fields); err != nil {
		return "", fmt.Errorf("decode document key: %w", err)
	}
	raw, ok := fields[keyPath]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		return "", fmt.Errorf("document key %q is not a string: %w", keyPath, err)
	}
	return key, nil
}
