package nbi

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// ErrInvalidRequest is returned when a request body cannot be decoded
// into the method's request shape.
var ErrInvalidRequest = errors.New("invalid request")

// Requests and responses travel as google.protobuf.Struct. Both sides go
// through the JSON form of the Go types, so field names follow their json
// tags.

func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return structpb.NewStruct(m)
}

func decodeStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return nil
	}
	raw, err := in.MarshalJSON()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
