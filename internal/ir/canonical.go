package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for a binding.
// CRITICAL: This is the ONLY serialization that should be used for
// binding identity and invocation cache keys.
//
// Each variable maps to the N-Triples rendering of its term. Differences
// from json.Marshal:
// 1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
// 2. No HTML escaping (< > & are NOT escaped)
// 3. Strings are NFC normalized
// 4. Nil terms are rejected
func MarshalCanonical(b Binding) ([]byte, error) {
	fields := make(map[string]string, len(b))
	for k, t := range b {
		if t == nil {
			return nil, fmt.Errorf("variable %q: nil term is forbidden in canonical JSON", k)
		}
		fields[k] = t.String()
	}
	return marshalCanonicalObject(fields)
}

// MarshalCanonicalStrings produces canonical JSON for a flat string map.
// Used for service configuration identity.
func MarshalCanonicalStrings(m map[string]string) ([]byte, error) {
	return marshalCanonicalObject(m)
}

func marshalCanonicalObject(fields map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalCanonicalString(fields[k])
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalCanonicalString NFC-normalizes and encodes a JSON string without
// HTML escaping.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// Encoder appends a newline.
	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return unescapeU2028U2029(out), nil
}

// unescapeU2028U2029 reverts encoding/json's escaping of U+2028 and U+2029,
// which RFC 8785 emits literally. Escaped backslashes are skipped so a
// literal "\\u2028" in the input survives.
func unescapeU2028U2029(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		if data[i+1] == 'u' && i+5 < len(data) && string(data[i+2:i+5]) == "202" &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i], data[i+1])
		i++
	}
	return out
}
