// Package json is the JSON codec used across mosaic. It is backed by sonic
// configured for encoding/json compatibility.
package json

import (
	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

// Marshal returns the JSON encoding of v.
func Marshal(v interface{}) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent is like Marshal but applies indentation.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses JSON-encoded data into v.
func Unmarshal(data []byte, v interface{}) error {
	return api.Unmarshal(data, v)
}
