package message

import (
	"encoding/json"
	"fmt"
	"math"
)

// Int converts a loosely typed decoded value to int64. Codecs disagree on
// integer types (msgpack picks the smallest width, JSON yields json.Number),
// so field update values go through here.
func Int(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	return int64(f), nil
}

// AgeRange is the value of a preferred_age_range field update.
type AgeRange struct {
	Min int
	Max int
}

// ParseAgeRange reads {"min": N, "max": M}.
func ParseAgeRange(v any) (AgeRange, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return AgeRange{}, fmt.Errorf("expected object with min and max, got %T", v)
	}
	lo, err := Int(m["min"])
	if err != nil {
		return AgeRange{}, fmt.Errorf("min: %w", err)
	}
	hi, err := Int(m["max"])
	if err != nil {
		return AgeRange{}, fmt.Errorf("max: %w", err)
	}
	return AgeRange{Min: int(lo), Max: int(hi)}, nil
}
