package gatecrypt

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrMalformedEncoding = errors.New("malformed hex encoding")
)

// ToHex encodes data as lowercase hex, two digits per byte.
func ToHex(data []byte) string {
	return hex.EncodeToString(data)
}

// FromHex decodes hex text produced by ToHex.
// Whitespace is not tolerated.
func FromHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrMalformedEncoding, len(s))
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	return data, nil
}
