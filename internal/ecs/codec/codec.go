// Package codec provides the encode/decode pairs bound to component types at
// registration time.
package codec

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

// Codec converts a component model to and from its wire payload.
type Codec[T any] interface {
	Encode(model T) ([]byte, error)
	Decode(data []byte) (T, error)
}

type funcs[T any] struct {
	encode func(T) ([]byte, error)
	decode func([]byte) (T, error)
}

// Funcs builds a Codec from a pair of functions.
func Funcs[T any](encode func(T) ([]byte, error), decode func([]byte) (T, error)) Codec[T] {
	return funcs[T]{encode: encode, decode: decode}
}

func (c funcs[T]) Encode(model T) ([]byte, error) { return c.encode(model) }
func (c funcs[T]) Decode(data []byte) (T, error)  { return c.decode(data) }

type jsonCodec[T any] struct{}

// JSON encodes models as JSON.
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

func (jsonCodec[T]) Encode(model T) ([]byte, error) {
	bz, err := json.Marshal(model)
	if err != nil {
		return nil, errors.Wrap(err, "json encode")
	}
	return bz, nil
}

func (jsonCodec[T]) Decode(data []byte) (T, error) {
	var model T
	if err := json.Unmarshal(data, &model); err != nil {
		return model, errors.Wrap(err, "json decode")
	}
	return model, nil
}

type protoCodec[T proto.Message] struct {
	newT func() T
}

// Proto encodes protobuf component models. newT must return an empty, non-nil message.
func Proto[T proto.Message](newT func() T) Codec[T] {
	return protoCodec[T]{newT: newT}
}

func (protoCodec[T]) Encode(model T) ([]byte, error) {
	bz, err := proto.Marshal(model)
	if err != nil {
		return nil, errors.Wrap(err, "proto encode")
	}
	return bz, nil
}

func (c protoCodec[T]) Decode(data []byte) (T, error) {
	model := c.newT()
	if err := proto.Unmarshal(data, model); err != nil {
		var zero T
		return zero, errors.Wrap(err, "proto decode")
	}
	return model, nil
}
