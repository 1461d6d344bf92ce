// Package encoding provides text decoding for model interchange files.
package encoding

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText converts file bytes into UTF-8.
//
// Files written by Windows tooling frequently start with a UTF-8 byte order
// mark or are saved as UTF-16. A leading BOM selects the decoder; data
// without a BOM is treated as UTF-8 and returned as-is.
func DecodeText(data []byte) ([]byte, error) {
	if !HasBOM(data) {
		return data, nil
	}
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return nil, fmt.Errorf("decoding text: %w", err)
	}
	return result, nil
}

// HasBOM reports whether data starts with a UTF-8 or UTF-16 byte order mark.
func HasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE})
}
