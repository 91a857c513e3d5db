package fetchcache

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// encoders is the ordered persistence fallback chain: native JSON first,
// then a normalizing pass that stringifies unserializable leaves, then a
// plain string representation. The last encoder cannot fail.
var encoders = []struct {
	name   string
	encode func(any) (string, error)
}{
	{"json", encodeJSON},
	{"json-normalized", encodeNormalized},
	{"string", encodeString},
}

func encodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeNormalized(v any) (string, error) {
	raw, err := json.Marshal(normalize(reflect.ValueOf(v)))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeString(v any) (string, error) {
	raw, err := json.Marshal(fmt.Sprint(v))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// normalize rebuilds a value as JSON-safe data, replacing leaves that
// encoding/json cannot handle (channels, functions, complex numbers) with
// their string representations.
func normalize(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return normalize(v.Elem())
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.String:
		return v.String()
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = normalize(v.Index(i))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = normalize(iter.Value())
		}
		return out
	case reflect.Struct:
		t := v.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			out[field.Name] = normalize(v.Field(i))
		}
		return out
	default:
		// Channels, funcs, complex numbers and anything else JSON rejects.
		return fmt.Sprint(v.Interface())
	}
}
