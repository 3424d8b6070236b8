package export

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/typedbuilder/content"
)

// ToProto converts the elements of c to a protobuf list. Numbers become
// doubles and bytestrings base64 strings, as structpb does.
func ToProto(c content.Content) (*structpb.ListValue, error) {
	lv, err := structpb.NewList(Plain(c))
	if err != nil {
		return nil, fmt.Errorf("export: proto: %w", err)
	}
	return lv, nil
}
