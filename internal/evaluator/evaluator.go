package evaluator

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/oliveagle/jsonpath"
)

// Evaluator looks up JSONPath expressions in decoded JSON and matches rules
// against the values found. Compiled expressions are cached.
type Evaluator struct {
	mu       sync.Mutex
	compiled map[string]*jsonpath.Compiled
}

// NewEvaluator creates a new evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{compiled: make(map[string]*jsonpath.Compiled)}
}

// Lookup returns the value at expression in data
func (e *Evaluator) Lookup(data any, expression string) (any, error) {
	pattern, err := e.compile(expression)
	if err != nil {
		return nil, err
	}
	value, err := pattern.Lookup(data)
	if err != nil {
		return nil, fmt.Errorf("JSONPath expression '%s' returned no results: %w", expression, err)
	}
	return value, nil
}

// LookupString returns the trimmed string at expression, or "" when it is
// missing or not a string.
func (e *Evaluator) LookupString(data any, expression string) string {
	if expression == "" {
		return ""
	}
	value, err := e.Lookup(data, expression)
	if err != nil {
		return ""
	}
	s, _ := value.(string)
	return strings.TrimSpace(s)
}

// LookupNumber returns the number at expression, accepting numeric strings
func (e *Evaluator) LookupNumber(data any, expression string) (float64, bool) {
	if expression == "" {
		return 0, false
	}
	value, err := e.Lookup(data, expression)
	if err != nil {
		return 0, false
	}
	n, err := ToNumber(value)
	return n, err == nil
}

// Match reports whether data satisfies rule. A missing field only satisfies ne.
func (e *Evaluator) Match(data any, rule Rule) bool {
	value, err := e.Lookup(data, rule.Expression)
	if err != nil {
		return rule.Operator == "ne"
	}

	matched, err := operators[rule.Operator](value, rule.Expected)
	if err != nil {
		slog.Debug("Rule evaluation failed", "rule", rule.String(), "error", err)
		return false
	}
	return matched
}

// MatchAll reports whether data satisfies every rule
func (e *Evaluator) MatchAll(data any, rules []Rule) bool {
	for _, rule := range rules {
		if !e.Match(data, rule) {
			return false
		}
	}
	return true
}

func (e *Evaluator) compile(expression string) (*jsonpath.Compiled, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pattern, ok := e.compiled[expression]; ok {
		return pattern, nil
	}
	pattern, err := jsonpath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath expression '%s': %w", expression, err)
	}
	e.compiled[expression] = pattern
	return pattern, nil
}
