package evaluator

import (
	"fmt"
	"strings"
)

// Rule tests one field of a JSON object. Expression is a JSONPath relative to
// the object, Expected is ignored by the exists operator.
type Rule struct {
	Expression string
	Operator   string
	Expected   string
}

func (r Rule) String() string {
	if r.Expected == "" {
		return r.Expression + " " + r.Operator
	}
	return r.Expression + " " + r.Operator + " " + r.Expected
}

// ParseRule reads "<jsonpath> <operator> [expected]", for example
// "$.mime eq application/pdf" or "$.link exists". The expected value is the
// rest of the line and may contain spaces.
func ParseRule(s string) (Rule, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return Rule{}, fmt.Errorf("invalid rule %q: want <jsonpath> <operator> [value]", s)
	}

	rule := Rule{Expression: fields[0], Operator: strings.ToLower(fields[1])}
	if !strings.HasPrefix(rule.Expression, "$") {
		return Rule{}, fmt.Errorf("invalid rule %q: expression must start with $", s)
	}
	if _, ok := operators[rule.Operator]; !ok {
		return Rule{}, fmt.Errorf("invalid rule %q: unknown operator %s", s, rule.Operator)
	}
	if len(fields) > 2 {
		rule.Expected = strings.Join(fields[2:], " ")
	} else if rule.Operator != "exists" {
		return Rule{}, fmt.Errorf("invalid rule %q: operator %s needs a value", s, rule.Operator)
	}
	return rule, nil
}

// ParseRules parses every non-empty entry of specs
func ParseRules(specs []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		rule, err := ParseRule(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
