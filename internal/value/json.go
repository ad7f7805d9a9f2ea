package value

import "fmt"

// ToJSON converts a Value into a plain interface{} tree (string, float64-free
// json.Number-safe int64, bool, nil, []interface{}, map[string]interface{})
// suitable for encoding/json. Reference values are not expected to survive
// to persistence; ToJSON panics on one since a StateDocument must never
// contain an unresolved reference.
func ToJSON(v Value) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case String:
		return string(t)
	case Int:
		return int64(t)
	case Bool:
		return bool(t)
	case Null:
		return nil
	case List:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = ToJSON(item)
		}
		return out
	case Map:
		out := make(map[string]interface{}, len(t))
		for _, k := range t.SortedKeys() {
			out[k] = ToJSON(t[k])
		}
		return out
	case Reference:
		panic(fmt.Sprintf("value.ToJSON: unresolved reference %s cannot be persisted", t.String()))
	default:
		panic(fmt.Sprintf("value.ToJSON: unhandled Value variant %T", t))
	}
}

// FromJSON converts a decoded JSON tree (as produced by encoding/json's
// default decoding into interface{}) back into a Value.
func FromJSON(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null{}
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Int(int64(t))
	case int64:
		return Int(t)
	case []interface{}:
		out := make(List, len(t))
		for i, item := range t {
			out[i] = FromJSON(item)
		}
		return out
	case map[string]interface{}:
		out := make(Map, len(t))
		for k, item := range t {
			out[k] = FromJSON(item)
		}
		return out
	default:
		panic(fmt.Sprintf("value.FromJSON: unhandled JSON type %T", t))
	}
}
