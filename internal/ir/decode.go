package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DecodeJSON parses a JSON document into an item. Integral numbers become Int,
// all other numbers Double.
func DecodeJSON(data []byte) (Item, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode JSON: trailing data after document")
	}
	return FromGo(raw)
}

// DecodeYAML parses a YAML document into an item.
func DecodeYAML(data []byte) (Item, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode YAML: %w", err)
	}
	return FromGo(raw)
}

// FromGo converts decoded JSON/YAML values (and a few native Go types) to
// items.
func FromGo(v any) (Item, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Item:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		return Int(int64(val)), nil
	case float64:
		return Double(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return Int(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s: %w", val, err)
		}
		return Double(f), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			it, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = it
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			it, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = it
		}
		return obj, nil
	case map[any]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			it, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", key, err)
			}
			obj[key] = it
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts an item back to plain Go values (the inverse of FromGo), for
// encoders that do not know about items.
func ToGo(it Item) any {
	switch v := it.(type) {
	case Null, nil:
		return nil
	case String:
		return string(v)
	case Int:
		return int64(v)
	case Double:
		return float64(v)
	case Bool:
		return bool(v)
	case Array:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = ToGo(m)
		}
		return out
	case Object:
		out := make(map[string]any, len(v))
		for k, m := range v {
			out[k] = ToGo(m)
		}
		return out
	}
	return nil
}

// SequenceFromGo converts a decoded JSON/YAML value to a sequence: a list
// becomes a sequence of its members, anything else a singleton.
func SequenceFromGo(v any) (Sequence, error) {
	list, ok := v.([]any)
	if !ok {
		it, err := FromGo(v)
		if err != nil {
			return nil, err
		}
		return Sequence{it}, nil
	}
	seq := make(Sequence, 0, len(list))
	for i, elem := range list {
		it, err := FromGo(elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		seq = append(seq, it)
	}
	return seq, nil
}
