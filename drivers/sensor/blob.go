package sensor

// Config blobs arrive as decoded JSON, so numbers are float64 and absent
// keys fall back to driver defaults. These accessors keep the per-driver
// parsing uniform.

// BlobString reads a string field, def when absent or mistyped.
func BlobString(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return def
}

// BlobFloat reads a numeric field, def when absent or mistyped.
func BlobFloat(cfg map[string]any, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// BlobInt reads a numeric field truncated to int.
func BlobInt(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// BlobBool reads a boolean field.
func BlobBool(cfg map[string]any, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}
