package cache

import (
	"crypto/md5"
	"encoding"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// MaxRawKeyLength is the longest raw key kept verbatim. Longer keys are
// replaced by their 32-character hex digest.
const MaxRawKeyLength = 64

// Keyable is implemented by key types that render their own canonical,
// order-independent form.
type Keyable interface {
	CacheKey() string
}

// NormalizeKey turns a lookup key into a bounded, deterministic string.
//
//   - string, []byte and Keyable values are used as the raw key.
//   - Other values are encoded as JSON with map keys sorted, so structurally
//     equal values normalize identically regardless of construction order.
//   - Values JSON cannot encode (channels, funcs, cyclic data) fall back to
//     their %#v representation. So do values JSON would encode lossily:
//     structs with unexported or `json:"-"` fields, at any depth, unless the
//     type implements json.Marshaler or encoding.TextMarshaler. Distinct
//     values that print identically will collide, and nested pointers print
//     as addresses.
//
// Raw keys longer than MaxRawKeyLength are replaced with their MD5 hex digest.
func NormalizeKey(key any) string {
	raw := rawKey(key)
	if len(raw) <= MaxRawKeyLength {
		return raw
	}
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func rawKey(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case []byte:
		return string(k)
	case Keyable:
		return k.CacheKey()
	}

	canonical, err := canonicalize(key)
	if err != nil {
		return fmt.Sprintf("%#v", key)
	}
	return string(canonical)
}

// canonicalize produces a deterministic JSON representation of v.
// Objects are emitted with sorted keys at every depth.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	case Keyable:
		return json.Marshal(val.CacheKey())
	}

	if lossy(reflect.ValueOf(v), 0) {
		return nil, errLossyKey
	}

	// encoding/json emits struct fields in declaration order and map keys
	// sorted, which is canonical for everything else.
	return json.Marshal(v)
}

// errLossyKey marks a key whose JSON form would drop fields.
var errLossyKey = errors.New("cache: key has fields JSON cannot see")

const maxKeyDepth = 32

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// lossy reports whether json.Marshal would silently drop part of v, which
// would let distinct keys share an encoding.
func lossy(v reflect.Value, depth int) bool {
	if !v.IsValid() {
		return false
	}
	if depth > maxKeyDepth {
		return true
	}
	t := v.Type()
	if t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) {
		return false
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return false
		}
		return lossy(v.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		if scalarKind(t.Elem().Kind()) {
			return false
		}
		for i := range v.Len() {
			if lossy(v.Index(i), depth+1) {
				return true
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if lossy(iter.Value(), depth+1) {
				return true
			}
		}
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if f.Tag.Get("json") == "-" {
				return true
			}
			// encoding/json promotes the fields of embedded unexported structs.
			if !f.IsExported() && !(f.Anonymous && f.Type.Kind() == reflect.Struct) {
				return true
			}
			if lossy(v.Field(i), depth+1) {
				return true
			}
		}
	}
	return false
}

func scalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, name...)
		out = append(out, ':')

		val, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, val...)
	}
	return append(out, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	out := []byte{'['}
	for i, v := range s {
		if i > 0 {
			out = append(out, ',')
		}
		val, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, val...)
	}
	return append(out, ']'), nil
}
