package prune

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/mohae/deepcopy"
)

// Options carries per-group policy fields, e.g. {"sparsity_level": 0.5}.
type Options map[string]any

// mergeOptions returns a fresh copy of defaults overridden by overrides. Neither
// input is aliased by the result.
func mergeOptions(defaults, overrides Options) (Options, error) {
	merged := Options{}
	if len(defaults) > 0 {
		copied, ok := deepcopy.Copy(defaults).(Options)
		if !ok {
			return nil, fmt.Errorf("failed to copy default options")
		}
		merged = copied
	}
	if len(overrides) > 0 {
		copied, ok := deepcopy.Copy(overrides).(Options)
		if !ok {
			return nil, fmt.Errorf("failed to copy target options")
		}
		if err := mergo.Merge(&merged, copied, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge options: %w", err)
		}
	}
	return merged, nil
}

// Float returns the numeric option key as a float64. ok is false if the key is
// absent.
func (o Options) Float(key string) (value float64, ok bool, err error) {
	raw, present := o[key]
	if !present {
		return 0, false, nil
	}

	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case uint64:
		return float64(v), true, nil
	default:
		return 0, true, fmt.Errorf("%w: %q must be a number, got %T", ErrInvalidOption, key, raw)
	}
}
