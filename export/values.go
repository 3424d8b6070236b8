// Package export converts builder snapshots to other representations:
// CBOR documents, Arrow arrays, SQL tables and protobuf struct values.
package export

import (
	"errors"
	"fmt"

	"github.com/chazu/typedbuilder/content"
)

// ErrUnsupported is returned for layouts a target cannot represent.
var ErrUnsupported = errors.New("export: unsupported layout")

// Plain returns the materialized elements of c with complex numbers split
// into [real, imag] pairs, which is what every target here can hold.
func Plain(c content.Content) []any {
	values := content.ToList(c)
	for i, v := range values {
		values[i] = normalize(v)
	}
	return values
}

func normalize(v any) any {
	switch v := v.(type) {
	case complex128:
		return []any{real(v), imag(v)}
	case []any:
		for i, x := range v {
			v[i] = normalize(x)
		}
		return v
	case map[string]any:
		for k, x := range v {
			v[k] = normalize(x)
		}
		return v
	}
	return v
}

func unsupported(c content.Content, why string) error {
	return fmt.Errorf("%w: %s: %s", ErrUnsupported, c.Form().Kind(), why)
}
