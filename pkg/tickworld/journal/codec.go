package journal

import (
	"encoding/json"
	"fmt"
)

// Codec converts messages to and from bytes.
// Encode must be deterministic: equal messages produce equal bytes.
type Codec[M any] interface {
	Encode(msg M) ([]byte, error)
	Decode(data []byte) (M, error)
}

// JSONCodec encodes messages with encoding/json. M must be a concrete type
// that round-trips through JSON.
type JSONCodec[M any] struct{}

// Encode implements Codec.
func (JSONCodec[M]) Encode(msg M) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode implements Codec.
func (JSONCodec[M]) Decode(data []byte) (M, error) {
	var msg M
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// EncodeAll encodes msgs in order.
func EncodeAll[M any](codec Codec[M], msgs []M) ([][]byte, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	out := make([][]byte, len(msgs))
	for i, msg := range msgs {
		b, err := codec.Encode(msg)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

// DecodeAll decodes raw in order.
func DecodeAll[M any](codec Codec[M], raw [][]byte) ([]M, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]M, len(raw))
	for i, b := range raw {
		msg, err := codec.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out[i] = msg
	}
	return out, nil
}
