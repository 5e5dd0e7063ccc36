package omnio

import (
	"encoding/json"
	"fmt"
)

// JSONCodec encodes and decodes the usermeta column. The default uses
// encoding/json; callers with bespoke value types (custom number
// handling, decimal preservation) can inject their own.
//
// Round-trip law: Unmarshal(Marshal(v)) is equal to v under the
// caller's equality for all supported values.
type JSONCodec interface {
	Marshal(v any) (string, error)
	Unmarshal(s string) (any, error)
}

// stdJSONCodec is the encoding/json-backed default.
type stdJSONCodec struct{}

// StdJSONCodec returns the default encoding/json codec.
func StdJSONCodec() JSONCodec {
	return stdJSONCodec{}
}

func (stdJSONCodec) Marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("omnio: encoding user metadata: %w", err)
	}

	return string(b), nil
}

func (stdJSONCodec) Unmarshal(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("omnio: decoding user metadata: %w", err)
	}

	return v, nil
}
