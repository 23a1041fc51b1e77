package kinds

import (
	"fmt"

	"github.com/mera-platform/mera/internal/model"
)

// onlyKeys rejects arguments outside allowed.
func onlyKeys(obj model.Object, allowed ...string) error {
	for k := range obj {
		known := false
		for _, a := range allowed {
			if k == a {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unexpected field %q", k)
		}
	}
	return nil
}

func requireInt(obj model.Object, key string, minValue, maxValue int64) (int64, error) {
	n, ok := obj.Int(key)
	if !ok {
		return 0, fmt.Errorf("%q must be an integer", key)
	}
	if n < minValue || n > maxValue {
		return 0, fmt.Errorf("%q = %d out of range [%d, %d]", key, n, minValue, maxValue)
	}
	return n, nil
}

func requireBool(obj model.Object, key string) (bool, error) {
	b, ok := obj.Bool(key)
	if !ok {
		return false, fmt.Errorf("%q must be a boolean", key)
	}
	return b, nil
}

func requireString(obj model.Object, key string, maxLen int) (string, error) {
	s, ok := obj.String(key)
	if !ok {
		return "", fmt.Errorf("%q must be a string", key)
	}
	if len([]rune(s)) > maxLen {
		return "", fmt.Errorf("%q longer than %d characters", key, maxLen)
	}
	return s, nil
}

func requireNonEmptyString(obj model.Object, key string, maxLen int) (string, error) {
	s, err := requireString(obj, key, maxLen)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%q must not be empty", key)
	}
	return s, nil
}

func optionalInt(obj model.Object, key string, def, minValue, maxValue int64) (int64, error) {
	if _, present := obj[key]; !present {
		return def, nil
	}
	return requireInt(obj, key, minValue, maxValue)
}

func optionalBool(obj model.Object, key string, def bool) (bool, error) {
	if _, present := obj[key]; !present {
		return def, nil
	}
	return requireBool(obj, key)
}

func optionalString(obj model.Object, key string, maxLen int) (string, error) {
	if _, present := obj[key]; !present {
		return "", nil
	}
	return requireString(obj, key, maxLen)
}

func boolArray(obj model.Object, key string) ([]bool, error) {
	arr, ok := obj.Array(key)
	if !ok {
		return nil, fmt.Errorf("%q must be an array", key)
	}
	out := make([]bool, len(arr))
	for i, v := range arr {
		b, ok := v.(model.Bool)
		if !ok {
			return nil, fmt.Errorf("%q[%d] must be a boolean", key, i)
		}
		out[i] = bool(b)
	}
	return out, nil
}

func toBoolArray(bs []bool) model.Array {
	out := make(model.Array, len(bs))
	for i, b := range bs {
		out[i] = model.Bool(b)
	}
	return out
}

func noArgs(args, _ model.Object) error {
	return onlyKeys(args)
}
