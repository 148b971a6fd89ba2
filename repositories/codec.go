package repositories

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Records are stored as protobuf Struct values so that profile metadata,
// which has no fixed schema, shares the same encoding as the other records.
func encodeRecord(fields map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return proto.Marshal(s)
}

func decodeRecord(b []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return s.AsMap(), nil
}

func stringField(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}
