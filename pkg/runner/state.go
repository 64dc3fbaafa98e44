package runner

import "github.com/sojinmm/lux-sub007/pkg/capability"

func newCapabilitySet(capabilities []string) capability.Set {
	return capability.NewSet(capabilities...)
}

func copyCapabilitySet(s capability.Set) capability.Set {
	out := make(capability.Set, len(s))
	for c := range s {
		out.Add(c)
	}
	return out
}

func deepCopyContext(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyContext(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
