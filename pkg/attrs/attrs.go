// Package attrs helps extract values from slog-style key/value attribute
// slices before they are handed to a logger or audit publisher.
package attrs

// ExtractString returns the string value following the given key in a
// [key1, value1, key2, value2, ...] slice. Returns "" when the key is absent
// or the value is not a string.
func ExtractString(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		if v, ok := attrs[i+1].(string); ok {
			return v
		}
	}
	return ""
}
