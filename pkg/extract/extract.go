// Package extract pulls a single text value out of collaborator responses whose
// shape is not fully under our control. Each collaborator documents its response
// contract as an ordered list of strategies; the first one that yields a value wins.
package extract

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Strategy returns the extracted value and whether it applies to the body.
type Strategy func(body []byte) (string, bool)

// Path reads a non-empty string at a gjson path, e.g. "choices.0.message.content".
func Path(path string) Strategy {
	return func(body []byte) (string, bool) {
		res := gjson.GetBytes(body, path)
		if !res.Exists() || res.Type == gjson.Null {
			return "", false
		}
		if s := res.String(); s != "" {
			return s, true
		}
		return "", false
	}
}

// Unless stops the chain with an empty value when the field at path exists and
// differs from want. It is used for status fields that mean "no result".
func Unless(path, want string) Strategy {
	return func(body []byte) (string, bool) {
		res := gjson.GetBytes(body, path)
		if res.Exists() && res.String() != want {
			return "", true
		}
		return "", false
	}
}

// Raw returns the whole body as compact JSON, or verbatim when it is not JSON.
func Raw() Strategy {
	return func(body []byte) (string, bool) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, body); err != nil {
			return string(body), true
		}
		return buf.String(), true
	}
}

// First runs the strategies in order and returns the first applicable value.
func First(body []byte, strategies ...Strategy) string {
	for _, s := range strategies {
		if v, ok := s(body); ok {
			return v
		}
	}
	return ""
}
