package evaluator

import (
	"fmt"
	"regexp"
	"strings"
)

type operator func(value any, expected string) (bool, error)

var operators = map[string]operator{
	"eq":       func(v any, want string) (bool, error) { return Equal(v, want), nil },
	"ne":       func(v any, want string) (bool, error) { return !Equal(v, want), nil },
	"gt":       compareWith(func(c int) bool { return c > 0 }),
	"lt":       compareWith(func(c int) bool { return c < 0 }),
	"gte":      compareWith(func(c int) bool { return c >= 0 }),
	"lte":      compareWith(func(c int) bool { return c <= 0 }),
	"contains": contains,
	"exists":   func(v any, _ string) (bool, error) { return v != nil, nil },
	"regex":    matchRegex,
}

func compareWith(accept func(int) bool) operator {
	return func(v any, want string) (bool, error) {
		cmp, err := Compare(v, want)
		if err != nil {
			return false, err
		}
		return accept(cmp), nil
	}
}

// contains matches a list element or a case-insensitive substring
func contains(v any, want string) (bool, error) {
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if Equal(item, want) {
				return true, nil
			}
		}
		return false, nil
	}
	return strings.Contains(strings.ToLower(ToString(v)), strings.ToLower(want)), nil
}

func matchRegex(v any, pattern string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid regex pattern '%s': %w", pattern, err)
	}
	return re.MatchString(ToString(v)), nil
}
