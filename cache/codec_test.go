package cache

import (
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type reply struct {
	Text   string
	Tokens int
	Tags   map[string]string
}

func TestGobCodec_RoundTrip(t *testing.T) {
	codec := GobCodec[reply]{}
	in := reply{Text: "hi", Tokens: 3, Tags: map[string]string{"lang": "en"}}

	data, err := codec.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	out, err := codec.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestGobCodec_Scalars(t *testing.T) {
	intCodec := GobCodec[int]{}
	data, err := intCodec.Marshal(0)
	if err != nil {
		t.Fatalf("Marshal(0) failed: %v", err)
	}
	if v, err := intCodec.Unmarshal(data); err != nil || v != 0 {
		t.Errorf("Unmarshal = %d, %v; want 0, nil", v, err)
	}
}

func TestGobCodec_RejectsGarbage(t *testing.T) {
	if _, err := (GobCodec[reply]{}).Unmarshal([]byte("garbage")); err == nil {
		t.Error("Unmarshal(garbage) should fail")
	}
}

func TestGobCodec_RejectsUnencodable(t *testing.T) {
	if _, err := (GobCodec[func()]{}).Marshal(func() {}); err == nil {
		t.Error("Marshal(func) should fail")
	}
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	codec := JSONCodec[reply]{}
	in := reply{Text: "hi", Tokens: 3}

	data, err := codec.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"Text":"hi","Tokens":3,"Tags":null}` {
		t.Errorf("Marshal = %s", data)
	}
	out, err := codec.Unmarshal(data)
	if err != nil || !reflect.DeepEqual(in, out) {
		t.Errorf("Unmarshal = %+v, %v; want %+v", out, err, in)
	}
}

func TestProtoCodec_RoundTrip(t *testing.T) {
	codec := NewProtoCodec(func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) })

	data, err := codec.Marshal(wrapperspb.String("cached"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	out, err := codec.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !proto.Equal(out, wrapperspb.String("cached")) {
		t.Errorf("round trip = %v, want cached", out.GetValue())
	}
}

func TestProtoCodec_RequiresConstructor(t *testing.T) {
	var codec ProtoCodec[*wrapperspb.StringValue]
	if _, err := codec.Unmarshal(nil); err == nil {
		t.Error("Unmarshal without a constructor should fail")
	}
}

func TestProtoCodec_RejectsGarbage(t *testing.T) {
	codec := NewProtoCodec(func() *wrapperspb.Int64Value { return new(wrapperspb.Int64Value) })
	if _, err := codec.Unmarshal([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("Unmarshal(garbage) should fail")
	}
}

func TestCodecFuncs(t *testing.T) {
	errBoom := errors.New("boom")
	codec := CodecFuncs[string]{
		MarshalFunc:   func(s string) ([]byte, error) { return []byte("<" + s + ">"), nil },
		UnmarshalFunc: func([]byte) (string, error) { return "", errBoom },
	}

	data, err := codec.Marshal("x")
	if err != nil || string(data) != "<x>" {
		t.Errorf("Marshal = %q, %v", data, err)
	}
	if _, err := codec.Unmarshal(data); !errors.Is(err, errBoom) {
		t.Errorf("Unmarshal error = %v, want boom", err)
	}
}
