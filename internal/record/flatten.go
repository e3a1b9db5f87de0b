package record

import "strconv"

// Flatten copies value into out under key. Nested objects and arrays are
// expanded into dotted keys, so {"dust": {"0.3": 10}} becomes "dust.0.3".
// Nulls are dropped.
func Flatten(out map[string]any, key string, value any) {
	switch v := value.(type) {
	case nil:
	case map[string]any:
		for k, child := range v {
			Flatten(out, key+"."+k, child)
		}
	case []any:
		for i, child := range v {
			Flatten(out, key+"."+strconv.Itoa(i), child)
		}
	default:
		out[key] = v
	}
}
