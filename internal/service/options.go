package service

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// DecodeOptions decodes a service's Options into the adapter's typed
// options struct. Unknown keys are rejected.
func DecodeOptions(opts map[string]any, v any) error {
	data, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}
