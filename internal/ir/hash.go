package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainBinding    = "fedq/binding/v1"
	DomainInvocation = "fedq/invocation/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// BindingID computes a content-addressed ID for a binding. Two bindings
// with the same variables bound to the same terms share an ID regardless
// of map iteration order.
func BindingID(b Binding) (string, error) {
	canonical, err := MarshalCanonical(b)
	if err != nil {
		return "", fmt.Errorf("BindingID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBinding, canonical), nil
}

// InvocationKey identifies one service invocation by service ID and
// resolved inputs. Logged with every invocation so repeated calls for the
// same inbound binding can be correlated.
func InvocationKey(serviceID string, inputs Binding) (string, error) {
	canonical, err := MarshalCanonical(inputs)
	if err != nil {
		return "", fmt.Errorf("InvocationKey: failed to marshal: %w", err)
	}
	data := make([]byte, 0, len(serviceID)+1+len(canonical))
	data = append(data, serviceID...)
	data = append(data, 0x00)
	data = append(data, canonical...)
	return hashWithDomain(DomainInvocation, data), nil
}

// MustBindingID is like BindingID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustBindingID(b Binding) string {
	id, err := BindingID(b)
	if err != nil {
		panic(err)
	}
	return id
}

// MustInvocationKey is like InvocationKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustInvocationKey(serviceID string, inputs Binding) string {
	key, err := InvocationKey(serviceID, inputs)
	if err != nil {
		panic(err)
	}
	return key
}
