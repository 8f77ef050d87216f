package cache

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"

	"google.golang.org/protobuf/proto"
)

// Codec converts values to and from the bytes a Backend stores.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: Marshal failures are reported as ErrSerializationFailed and
//     Unmarshal failures as ErrCorrupted by the Cache; codecs need not wrap.
type Codec[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

// GobCodec encodes values with encoding/gob. It is the default codec and
// handles any value gob can describe, including nested structs and maps.
type GobCodec[V any] struct{}

// Marshal encodes v.
func (GobCodec[V]) Marshal(v V) ([]byte, error) {
	var buf bytes.Buffer
	// Encoding through a pointer lets V itself be an interface type.
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data.
func (GobCodec[V]) Unmarshal(data []byte) (V, error) {
	var v V
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v)
	return v, err
}

// JSONCodec encodes values as JSON. Entries stay human-readable on disk
// and in Redis, at the cost of JSON's type fidelity.
type JSONCodec[V any] struct{}

// Marshal encodes v.
func (JSONCodec[V]) Marshal(v V) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes data.
func (JSONCodec[V]) Unmarshal(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}

// ProtoCodec encodes protobuf messages in their binary wire format.
type ProtoCodec[V proto.Message] struct {
	newMessage func() V
}

// NewProtoCodec returns a codec for messages created by newMessage,
// typically a function returning a fresh pointer such as
// func() *pb.Reply { return new(pb.Reply) }.
func NewProtoCodec[V proto.Message](newMessage func() V) ProtoCodec[V] {
	return ProtoCodec[V]{newMessage: newMessage}
}

// Marshal encodes m deterministically.
func (c ProtoCodec[V]) Marshal(m V) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(m)
}

// Unmarshal decodes data into a fresh message.
func (c ProtoCodec[V]) Unmarshal(data []byte) (V, error) {
	if c.newMessage == nil {
		var zero V
		return zero, errors.New("proto codec: no message constructor")
	}
	m := c.newMessage()
	if err := proto.Unmarshal(data, m); err != nil {
		var zero V
		return zero, err
	}
	return m, nil
}

// CodecFuncs adapts a serializer and deserializer pair to Codec.
type CodecFuncs[V any] struct {
	MarshalFunc   func(V) ([]byte, error)
	UnmarshalFunc func([]byte) (V, error)
}

// Marshal calls MarshalFunc.
func (c CodecFuncs[V]) Marshal(v V) ([]byte, error) {
	return c.MarshalFunc(v)
}

// Unmarshal calls UnmarshalFunc.
func (c CodecFuncs[V]) Unmarshal(data []byte) (V, error) {
	return c.UnmarshalFunc(data)
}

var (
	_ Codec[any]           = GobCodec[any]{}
	_ Codec[any]           = JSONCodec[any]{}
	_ Codec[proto.Message] = ProtoCodec[proto.Message]{}
	_ Codec[any]           = CodecFuncs[any]{}
)
