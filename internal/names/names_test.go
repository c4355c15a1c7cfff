package names

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		rule Rule
		ok   bool
	}{
		{"simple", "my-cluster-1", "", true},
		{"single char", "a", "", true},
		{"digits", "123", "", true},
		{"double hyphen", "a--b", "", true},
		{"max length", strings.Repeat("a", 253), "", true},
		{"empty", "", RuleEmpty, false},
		{"leading hyphen", "-bad", RuleCharacters, false},
		{"trailing hyphen", "bad-", RuleCharacters, false},
		{"uppercase", "UP", RuleCharacters, false},
		{"dot", "a.b", RuleCharacters, false},
		{"slash", "a/../b", RuleCharacters, false},
		{"space", "a b", RuleCharacters, false},
		{"too long", strings.Repeat("a", 254), RuleTooLong, false},
		{"too long and invalid", strings.Repeat("A", 300), RuleTooLong, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.in)
			if tc.ok {
				if err != nil {
					t.Fatalf("Validate(%q) = %v, want nil", tc.in, err)
				}
				return
			}
			var ie *InvalidNameError
			if !errors.As(err, &ie) {
				t.Fatalf("Validate(%q) = %v, want InvalidNameError", tc.in, err)
			}
			if ie.Rule != tc.rule {
				t.Fatalf("rule = %s, want %s", ie.Rule, tc.rule)
			}
			if ie.Value != tc.in {
				t.Fatalf("value not carried: %q", ie.Value)
			}
		})
	}
}

func TestValidateFieldMessage(t *testing.T) {
	err := ValidateField("cluster", "")
	if err == nil || !strings.Contains(err.Error(), "cluster") {
		t.Fatalf("expected field in message, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Acme Corp":           "acme-corp",
		"  --Hello__World-- ": "hello-world",
		"ÄÖÜ":                 "",
		"already-fine":        "already-fine",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
	long := Sanitize(strings.Repeat("ab-", 200))
	if len(long) > MaxLength {
		t.Fatalf("sanitized length %d exceeds max", len(long))
	}
	if err := Validate(long); err != nil {
		t.Fatalf("sanitized value should validate: %v", err)
	}
	if got := SanitizeMax("abc-def", 4); got != "abc" {
		t.Fatalf("SanitizeMax trim = %q", got)
	}
}
