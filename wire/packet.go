package wire

// Packet is one decoded protocol message: a correlation identifier, a
// direction flag, and a structured value. Identifiers are assigned by the
// requesting side and echoed back on the response.
type Packet struct {
	ID        uint32
	IsRequest bool
	Value     map[string]interface{}
}

// normalizeValue converts a CBOR-decoded value tree into the canonical
// shapes used throughout the protocol: int for all integer widths,
// map[string]interface{} for maps, []interface{} for sequences.
// CBOR libraries may decode integers as int, int64, or uint64, and maps
// with interface{} keys, so decoded trees are normalized once at the
// codec boundary instead of at every field access.
func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case uint64:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			if ks, ok := k.(string); ok {
				out[ks] = normalizeValue(e)
			}
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	default:
		return x
	}
}

// StringField gets a string entry from a normalized value map.
func StringField(m map[string]interface{}, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IntField gets an integer entry from a normalized value map.
func IntField(m map[string]interface{}, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

// BoolField gets a boolean entry from a normalized value map.
func BoolField(m map[string]interface{}, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// BytesField gets a byte-buffer entry from a normalized value map.
// A string entry is accepted and converted, matching the coercion the
// worker applies on its side.
func BytesField(m map[string]interface{}, key string) ([]byte, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	default:
		return nil, false
	}
}

// SliceField gets a sequence entry from a normalized value map.
func SliceField(m map[string]interface{}, key string) ([]interface{}, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	s, ok := v.([]interface{})
	return s, ok
}

// MapField gets a nested map entry from a normalized value map.
func MapField(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	nested, ok := v.(map[string]interface{})
	return nested, ok
}
