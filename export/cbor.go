package export

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/typedbuilder/content"
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("export: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("export: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// MarshalCBOR encodes the elements of c as one canonical CBOR array.
func MarshalCBOR(c content.Content) ([]byte, error) {
	data, err := cborEncMode.Marshal(Plain(c))
	if err != nil {
		return nil, fmt.Errorf("export: marshal cbor: %w", err)
	}
	return data, nil
}

// UnmarshalCBOR decodes a document written by MarshalCBOR. Records come back
// as map[string]any and integers as int64.
func UnmarshalCBOR(data []byte) ([]any, error) {
	var out []any
	if err := cborDecMode.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("export: unmarshal cbor: %w", err)
	}
	return out, nil
}
