package value

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxSafeInteger is 2^53, the largest magnitude below which every integer
// has an exact float64 representation.
const maxSafeInteger = 1 << 53

// Normalize converts a duck-typed Go value into a Value.
//
// Accepted inputs: nil, Value, string, bool, every integer and float width,
// json.Number, and maps with string keys, slices, arrays and pointers of
// those (via reflection). Cycles, NaN/Inf and other kinds (chan, func,
// complex, struct) fail with an *Error matching ErrInvalidArguments.
func Normalize(v any) (Value, error) {
	n := &normalizer{onPath: make(map[visit]bool)}
	return n.normalize(v, "$")
}

// NormalizeArgs normalizes a query argument map. A nil map is treated as
// the empty object.
func NormalizeArgs(args map[string]any) (Object, error) {
	if args == nil {
		return Object{}, nil
	}
	n := &normalizer{onPath: make(map[visit]bool)}
	v, err := n.normalize(args, "args")
	if err != nil {
		return nil, err
	}
	return v.(Object), nil
}

// visit identifies a container on the current traversal path.
type visit struct {
	ptr  uintptr
	len  int
	kind reflect.Kind
}

type normalizer struct {
	onPath map[visit]bool
}

func (n *normalizer) normalize(v any, path string) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return n.normalizeValue(val, path)
	case string:
		return normalizeString(val, path)
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, invalid(path, "integer %d overflows int64", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, invalid(path, "integer %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return normalizeFloat(float64(val), path)
	case float64:
		return normalizeFloat(val, path)
	case json.Number:
		return normalizeNumber(val, path)
	}

	return n.normalizeReflect(reflect.ValueOf(v), path)
}

// normalizeValue walks an already-typed Value so nested Arrays and Objects
// still get cycle and float checks.
func (n *normalizer) normalizeValue(v Value, path string) (Value, error) {
	switch val := v.(type) {
	case Float:
		return normalizeFloat(float64(val), path)
	case String:
		return normalizeString(string(val), path)
	case Array:
		return n.normalizeReflect(reflect.ValueOf(val), path)
	case Object:
		return n.normalizeReflect(reflect.ValueOf(val), path)
	default:
		return v, nil
	}
}

// normalizeString rejects invalid UTF-8 so distinct byte strings never
// share a key.
func normalizeString(s, path string) (Value, error) {
	if !utf8.ValidString(s) {
		return nil, invalid(path, "string %q is not valid UTF-8", s)
	}
	return String(s), nil
}

func normalizeFloat(f float64, path string) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, invalid(path, "non-finite number %v", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < maxSafeInteger {
		return Int(int64(f)), nil
	}
	return Float(f), nil
}

func normalizeNumber(num json.Number, path string) (Value, error) {
	s := string(num)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := num.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := num.Float64()
	if err != nil {
		return nil, invalid(path, "malformed number %q", s)
	}
	return normalizeFloat(f, path)
}

func (n *normalizer) normalizeReflect(rv reflect.Value, path string) (Value, error) {
	switch rv.Kind() {
	case reflect.Invalid:
		return Null{}, nil

	case reflect.Interface:
		if rv.IsNil() {
			return Null{}, nil
		}
		return n.normalize(rv.Elem().Interface(), path)

	case reflect.Pointer:
		if rv.IsNil() {
			return Null{}, nil
		}
		key := visit{ptr: rv.Pointer(), kind: reflect.Pointer}
		if n.onPath[key] {
			return nil, invalid(path, "cyclic reference")
		}
		n.onPath[key] = true
		defer delete(n.onPath, key)
		return n.normalize(rv.Elem().Interface(), path)

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, invalid(path, "map key type %s is not string", rv.Type().Key())
		}
		if rv.IsNil() {
			return Object{}, nil
		}
		key := visit{ptr: rv.Pointer(), kind: reflect.Map}
		if n.onPath[key] {
			return nil, invalid(path, "cyclic reference")
		}
		n.onPath[key] = true
		defer delete(n.onPath, key)

		obj := make(Object, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if !utf8.ValidString(k) {
				return nil, invalid(path, "object key %q is not valid UTF-8", k)
			}
			elem, err := n.normalize(iter.Value().Interface(), path+"."+k)
			if err != nil {
				return nil, err
			}
			obj[k] = elem
		}
		return obj, nil

	case reflect.Slice:
		if rv.IsNil() {
			return Array{}, nil
		}
		if rv.Len() > 0 {
			key := visit{ptr: rv.Pointer(), len: rv.Len(), kind: reflect.Slice}
			if n.onPath[key] {
				return nil, invalid(path, "cyclic reference")
			}
			n.onPath[key] = true
			defer delete(n.onPath, key)
		}
		return n.normalizeElems(rv, path)

	case reflect.Array:
		return n.normalizeElems(rv, path)

	case reflect.String:
		return normalizeString(rv.String(), path)
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, invalid(path, "integer %d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return normalizeFloat(rv.Float(), path)

	default:
		return nil, invalid(path, "unsupported type %s", rv.Type())
	}
}

func (n *normalizer) normalizeElems(rv reflect.Value, path string) (Value, error) {
	arr := make(Array, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, err := n.normalize(rv.Index(i).Interface(), indexPath(path, i))
		if err != nil {
			return nil, err
		}
		arr[i] = elem
	}
	return arr, nil
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
