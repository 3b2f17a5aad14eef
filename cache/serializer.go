package cache

import (
	"github.com/bytedance/sonic"
	"github.com/vmihailenco/msgpack/v5"
)

// Serializer converts typed values to and from the byte contract the cache
// stores. The engine is format-agnostic; any self-describing encoding works.
type Serializer interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Msgpack is the default Serializer. Most Go types work out of the box:
// primitives, structs with exported fields, maps, slices, and pointers.
var Msgpack Serializer = msgpackSerializer{}

// JSON serializes values as JSON. Useful when cached values must be
// readable by non-Go consumers sharing the slow tier.
var JSON Serializer = jsonSerializer{}

type msgpackSerializer struct{}

func (msgpackSerializer) Name() string { return "msgpack" }

func (msgpackSerializer) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackSerializer) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

type jsonSerializer struct{}

func (jsonSerializer) Name() string { return "json" }

func (jsonSerializer) Marshal(v any) ([]byte, error) {
	return sonic.ConfigDefault.Marshal(v)
}

func (jsonSerializer) Unmarshal(data []byte, v any) error {
	return sonic.ConfigDefault.Unmarshal(data, v)
}
