package conflict

import (
	"encoding/json"
	"reflect"
	"time"
)

// valuesEqual reports whether two field values are semantically equal.
// Values may arrive as native Go types from stored state or as generic JSON
// types from client payloads; both sides are normalized before comparison.
func valuesEqual(a, b interface{}) bool {
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

// normalizeValue converts a value into a canonical comparable form:
// numbers become float64, timestamps become RFC3339Nano strings in UTC,
// and structured values are reduced to generic JSON shapes. List-valued
// fields are compared by whole-value equality after normalization.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return val
	case string:
		// Timestamps can arrive as strings from JSON and as time.Time from
		// storage. Canonicalize parseable timestamps so the two agree.
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t.UTC().Format(time.RFC3339Nano)
		}
		return val
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339Nano)
	case *string:
		if val == nil {
			return nil
		}
		return normalizeValue(*val)
	case *float64:
		if val == nil {
			return nil
		}
		return *val
	case *int:
		if val == nil {
			return nil
		}
		return float64(*val)
	case *bool:
		if val == nil {
			return nil
		}
		return *val
	default:
		return normalizeStructured(v)
	}
}

// normalizeStructured reduces lists, maps, and struct-backed values to
// generic JSON shapes with every element normalized recursively.
func normalizeStructured(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return v
	}
	return normalizeGeneric(generic)
}

func normalizeGeneric(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeGeneric(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeGeneric(item)
		}
		return out
	default:
		return normalizeValue(v)
	}
}
