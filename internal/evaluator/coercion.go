package evaluator

import (
	"fmt"
	"strconv"
	"strings"
)

// ToString renders a decoded JSON value as text
func ToString(value any) string {
	if value == nil {
		return "null"
	}
	return fmt.Sprintf("%v", value)
}

// ToNumber converts a decoded JSON value to float64
func ToNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string '%s' to number", v)
		}
		return num, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}

// Equal compares a decoded JSON value with a rule operand, numerically when
// both sides are numbers, then as booleans, then as case-insensitive text.
func Equal(value any, want string) bool {
	if value == nil {
		return want == "null"
	}
	if a, err := ToNumber(value); err == nil {
		if b, err := ToNumber(want); err == nil {
			return a == b
		}
	}
	if b, ok := value.(bool); ok {
		parsed, err := strconv.ParseBool(want)
		return err == nil && parsed == b
	}
	return strings.EqualFold(ToString(value), want)
}

// Compare orders a decoded JSON value against a numeric rule operand
func Compare(value any, want string) (int, error) {
	a, err := ToNumber(value)
	if err != nil {
		return 0, fmt.Errorf("cannot compare: left value - %w", err)
	}
	b, err := ToNumber(want)
	if err != nil {
		return 0, fmt.Errorf("cannot compare: right value - %w", err)
	}

	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	}
	return 0, nil
}
