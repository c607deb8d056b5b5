package config

import (
	"fmt"
	"math"
)

// Bounds for paper-trading sizing inputs.
const (
	MaxContracts = 1_000_000
	MaxMargin    = 1_000_000_000
	MinLeverage  = 1
	MaxLeverage  = 150
)

// ConfigError reports a configuration value that was out of range and has
// been replaced by a safe one. It is a warning, not a failure.
type ConfigError struct {
	Field string
	Value float64
	Used  float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s=%v out of range, using %v", e.Field, e.Value, e.Used)
}

// ClampFloat bounds v to [lo, hi]. NaN becomes lo. A ConfigError is appended
// to warns (when non-nil) whenever v had to change.
func ClampFloat(field string, v, lo, hi float64, warns *[]error) float64 {
	out := v
	switch {
	case math.IsNaN(v):
		out = lo
	case v < lo:
		out = lo
	case v > hi:
		out = hi
	}
	if out != v && warns != nil {
		*warns = append(*warns, &ConfigError{Field: field, Value: v, Used: out})
	}
	return out
}

// ClampInt is ClampFloat for integers.
func ClampInt(field string, v, lo, hi int, warns *[]error) int {
	return int(ClampFloat(field, float64(v), float64(lo), float64(hi), warns))
}

// Leverage rounds v to a whole multiplier within [MinLeverage, MaxLeverage].
func Leverage(field string, v float64, warns *[]error) int {
	return int(math.Round(ClampFloat(field, v, MinLeverage, MaxLeverage, warns)))
}
