package normalize

// Typed accessors over the decoded JSON object. Raw payloads are
// map[string]any straight from encoding/json, so every read goes
// through a type switch.

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func floatField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case int: // unlikely from encoding/json, but harmless to support
		return float64(val), true
	case int64:
		return float64(val), true
	}
	return 0, false
}

func mapField(m map[string]any, key string) map[string]any {
	v, ok := m[key]
	if !ok {
		return nil
	}
	sub, _ := v.(map[string]any)
	return sub
}

func hasField(m map[string]any, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}
