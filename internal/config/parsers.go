// Package config provides configuration loading and parsing for crankbench.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// lookupSetting searches for a value in settings using multiple candidate keys.
// It performs case-insensitive matching by also checking lowercase versions.
func lookupSetting(settings map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, key := range candidates {
		if val, ok := settings[key]; ok {
			return val, true
		}
		lower := strings.ToLower(key)
		if val, ok := settings[lower]; ok {
			return val, true
		}
	}
	return nil, false
}

func asString(value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}
	return cast.ToStringE(value)
}

// asInt rejects fractional values instead of truncating them.
func asInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		return cast.ToIntE(strings.TrimSpace(v))
	case float32, float64:
		f := cast.ToFloat64(v)
		if f != float64(int(f)) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int(f), nil
	default:
		return cast.ToIntE(v)
	}
}

func asFloat64(value interface{}) (float64, error) {
	if s, ok := value.(string); ok {
		if strings.TrimSpace(s) == "" {
			return 0, nil
		}
		return cast.ToFloat64E(strings.TrimSpace(s))
	}
	if value == nil {
		return 0, nil
	}
	return cast.ToFloat64E(value)
}

func asBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return false, nil
		}
		return cast.ToBoolE(strings.TrimSpace(v))
	default:
		return false, fmt.Errorf("unsupported boolean type %T", value)
	}
}

// asDuration converts an interface value to a time.Duration. Strings are
// parsed with time.ParseDuration; bare numbers are seconds.
func asDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		return time.ParseDuration(v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, err
		}
		return time.Duration(secs * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("unsupported duration type %T", value)
	}
}

// asStringSlice accepts a list or a single string.
func asStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	default:
		return cast.ToStringSliceE(v)
	}
}

// toInterfaceSlice converts various slice types to []interface{}.
func toInterfaceSlice(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return v, nil
	case []map[string]interface{}:
		items := make([]interface{}, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", value)
	}
}

// toStringKeyMap converts a map with various key types to map[string]interface{}.
// Keys are normalized to lowercase.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	raw, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	result := make(map[string]interface{}, len(raw))
	for key, val := range raw {
		result[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return result, nil
}
