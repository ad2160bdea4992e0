package harness

import (
	"fmt"
	"strconv"
)

// args are step arguments decoded from YAML.
type args map[string]any

func (a args) value(key string) any {
	return a[key]
}

func (a args) str(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (a args) flag(key string) bool {
	b, _ := a[key].(bool)
	return b
}

func (a args) integer(key string) (int64, error) {
	switch v := a[key].(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("%s: want an integer, got %T", key, v)
	}
}

// arrays converts {name: [numbers]} into named float arrays.
func (a args) arrays(key string) (map[string][]float64, error) {
	raw, ok := a[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: want a mapping of number lists, got %T", key, a[key])
	}
	out := make(map[string][]float64, len(raw))
	for name, v := range raw {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%s.%s: want a list, got %T", key, name, v)
		}
		values := make([]float64, len(list))
		for i, x := range list {
			switch n := x.(type) {
			case int:
				values[i] = float64(n)
			case float64:
				values[i] = n
			default:
				return nil, fmt.Errorf("%s.%s[%d]: want a number, got %T", key, name, i, x)
			}
		}
		out[name] = values
	}
	return out, nil
}
