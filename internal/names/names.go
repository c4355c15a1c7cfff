// Package names validates untrusted identifiers before they are used in
// Kubernetes API calls.
package names

import (
	"fmt"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// MaxLength is the longest name accepted for a cluster or cluster-scoped resource.
const MaxLength = validation.DNS1123SubdomainMaxLength

// Rule identifies which naming rule a value violated.
type Rule string

const (
	RuleEmpty      Rule = "empty"
	RuleTooLong    Rule = "too_long"
	RuleCharacters Rule = "invalid_characters"
)

var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// InvalidNameError reports the offending value and the rule it broke.
type InvalidNameError struct {
	Field string
	Value string
	Rule  Rule
}

func (e *InvalidNameError) Error() string {
	field := e.Field
	if field == "" {
		field = "name"
	}
	switch e.Rule {
	case RuleEmpty:
		return fmt.Sprintf("%s must not be empty", field)
	case RuleTooLong:
		return fmt.Sprintf("%s must be at most %d characters (got %d)", field, MaxLength, len(e.Value))
	default:
		return fmt.Sprintf("%s %q must consist of lowercase alphanumeric characters or '-', and must start and end with an alphanumeric character", field, e.Value)
	}
}

// Validate checks name against the Kubernetes naming rules, in order: non-empty,
// at most MaxLength characters, lowercase alphanumerics separated by hyphens.
func Validate(name string) error {
	return ValidateField("name", name)
}

// ValidateField is Validate with the field name carried into the error.
func ValidateField(field, name string) error {
	if name == "" {
		return &InvalidNameError{Field: field, Value: name, Rule: RuleEmpty}
	}
	if len(name) > MaxLength {
		return &InvalidNameError{Field: field, Value: name, Rule: RuleTooLong}
	}
	if !namePattern.MatchString(name) {
		return &InvalidNameError{Field: field, Value: name, Rule: RuleCharacters}
	}
	return nil
}

// Sanitize normalizes input into something that passes Validate when possible.
// It is a best-effort helper for suggestions (e.g. deriving a slug from a
// display name) and must never replace Validate on request input.
func Sanitize(input string) string {
	return SanitizeMax(input, MaxLength)
}

// SanitizeMax is Sanitize with a custom length limit. It returns "" when
// nothing usable remains.
func SanitizeMax(input string, maxLen int) string {
	s := strings.ToLower(strings.TrimSpace(input))
	var b strings.Builder
	b.Grow(len(s))
	prevHyphen := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevHyphen = false
		} else {
			if prevHyphen {
				continue
			}
			b.WriteRune('-')
			prevHyphen = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if maxLen > 0 && len(out) > maxLen {
		out = strings.Trim(out[:maxLen], "-")
	}
	return out
}
