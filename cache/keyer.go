package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Keyer derives cache keys from an operation and its parameters.
//
// Implementations must be deterministic and safe for concurrent use.
type Keyer interface {
	Key(operationID string, params any) (string, error)
}

// DefaultKeyer keys entries by
//
//	hex(SHA-256(operationID || 0x00 || canonical JSON(params)))
//
// Canonical JSON has object keys sorted at every depth and numbers written
// as they were encoded, so a struct and the equivalent map share a key.
// Array order is significant.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

func (k *DefaultKeyer) Key(operationID string, params any) (string, error) {
	canonical, err := canonicalJSON(params)
	if err != nil {
		return "", fmt.Errorf("cache: key params for %s: %w", operationID, err)
	}

	h := sha256.New()
	h.Write([]byte(operationID))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalJSON re-encodes v through a generic tree. encoding/json writes
// map keys in sorted order, which makes the output independent of struct
// field order and map iteration order.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

var _ Keyer = (*DefaultKeyer)(nil)
