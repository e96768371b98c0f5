package store

import (
	"strconv"
	"strings"

	"confd/internal/types"
)

// Rule validates a value for keys whose name contains Match
type Rule struct {
	Match string
	Check func(value string) (ok bool, reason string)
}

// defaultRules is the built-in rule table, matched by case-insensitive
// substring on the key name. First match wins; unmatched keys are valid.
var defaultRules = []Rule{
	// Database keys come before the generic URL rule: their schemes are
	// checked by the sanitizer allow-list, not the http prefix rule.
	{
		Match: "DATABASE",
		Check: func(v string) (bool, string) {
			if strings.Contains(v, "://") {
				return true, ""
			}
			return false, "DATABASE values must be connection URLs"
		},
	},
	{
		Match: "DB",
		Check: func(v string) (bool, string) {
			if strings.Contains(v, "://") {
				return true, ""
			}
			return false, "DB values must be connection URLs"
		},
	},
	{
		Match: "URL",
		Check: func(v string) (bool, string) {
			if strings.HasPrefix(v, "http") {
				return true, ""
			}
			return false, "URL values must start with http"
		},
	},
	{
		Match: "PORT",
		Check: func(v string) (bool, string) {
			if _, err := strconv.Atoi(v); err == nil {
				return true, ""
			}
			return false, "PORT values must be numeric"
		},
	},
	{
		Match: "EMAIL",
		Check: func(v string) (bool, string) {
			if strings.Contains(v, "@") {
				return true, ""
			}
			return false, "EMAIL values must contain @"
		},
	},
	{
		Match: "SECRET",
		Check: func(v string) (bool, string) {
			if len(v) >= 32 {
				return true, ""
			}
			return false, "SECRET values must be at least 32 characters"
		},
	},
}

// Rules holds the rule table. Extending it is a matter of appending rules;
// callers never change.
type Rules struct {
	rules []Rule
}

// NewRules returns the built-in rule table
func NewRules() *Rules {
	return &Rules{rules: append([]Rule(nil), defaultRules...)}
}

// Add appends a custom rule
func (r *Rules) Add(rule Rule) {
	r.rules = append(r.rules, rule)
}

// ValidateConfigValue checks value against the first rule whose Match
// substring appears in key, case-insensitively. Returns a ValidationError
// on failure, nil otherwise.
func (r *Rules) ValidateConfigValue(key, value string) error {
	upper := strings.ToUpper(key)
	for _, rule := range r.rules {
		if !strings.Contains(upper, rule.Match) {
			continue
		}
		if ok, reason := rule.Check(value); !ok {
			return &types.ValidationError{Key: key, Reason: reason}
		}
		return nil
	}
	return nil
}
