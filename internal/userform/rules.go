package userform

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Field names a form input.
type Field string

const (
	FieldName     Field = "name"
	FieldEmail    Field = "email"
	FieldAge      Field = "age"
	FieldIsActive Field = "isActive"
)

// Fields lists the validated inputs in display order.
var Fields = []Field{FieldName, FieldEmail, FieldAge}

// ViolationKind tags a failed rule.
type ViolationKind string

const (
	KindRequired      ViolationKind = "required"
	KindMinLength     ViolationKind = "minlength"
	KindMaxLength     ViolationKind = "maxlength"
	KindMin           ViolationKind = "min"
	KindMax           ViolationKind = "max"
	KindEmail         ViolationKind = "email"
	KindInvalidDomain ViolationKind = "invalidDomain"
	KindWhitespace    ViolationKind = "whitespace"
	KindNotInteger    ViolationKind = "notInteger"
)

// precedence decides which violation is reported when a field has several.
var precedence = []ViolationKind{
	KindRequired,
	KindMinLength,
	KindMaxLength,
	KindMin,
	KindMax,
	KindEmail,
	KindInvalidDomain,
	KindWhitespace,
	KindNotInteger,
}

// AllowedDomains are the only email domains accepted. The comparison is
// case-sensitive on the domain as typed.
var AllowedDomains = []string{"gmail.com", "yahoo.com", "outlook.com", "example.com"}

const (
	NameMinLength = 2
	NameMaxLength = 50
	AgeMin        = 18
	AgeMax        = 100
)

// Violation is one failed rule. Limit holds the bound for length and range
// rules.
type Violation struct {
	Kind  ViolationKind `json:"kind"`
	Limit int           `json:"limit,omitempty"`
}

// Rule checks a raw input value and returns nil when it passes.
type Rule func(value string) *Violation

var validate = validator.New()

// Required fails on an empty value. A value made of spaces is not empty.
func Required() Rule {
	return func(value string) *Violation {
		if value == "" {
			return &Violation{Kind: KindRequired}
		}
		return nil
	}
}

// MinLength fails when a non-empty value has fewer than n characters.
func MinLength(n int) Rule {
	return func(value string) *Violation {
		if value != "" && utf8.RuneCountInString(value) < n {
			return &Violation{Kind: KindMinLength, Limit: n}
		}
		return nil
	}
}

// MaxLength fails when the value has more than n characters.
func MaxLength(n int) Rule {
	return func(value string) *Violation {
		if utf8.RuneCountInString(value) > n {
			return &Violation{Kind: KindMaxLength, Limit: n}
		}
		return nil
	}
}

// Min fails when a numeric value is below n. Non-numeric values pass.
func Min(n int) Rule {
	return func(value string) *Violation {
		if v, ok := parseNumber(value); ok && v < float64(n) {
			return &Violation{Kind: KindMin, Limit: n}
		}
		return nil
	}
}

// Max fails when a numeric value is above n. Non-numeric values pass.
func Max(n int) Rule {
	return func(value string) *Violation {
		if v, ok := parseNumber(value); ok && v > float64(n) {
			return &Violation{Kind: KindMax, Limit: n}
		}
		return nil
	}
}

// Email fails when a non-empty value is not shaped like an address.
func Email() Rule {
	return func(value string) *Violation {
		if value != "" && validate.Var(value, "email") != nil {
			return &Violation{Kind: KindEmail}
		}
		return nil
	}
}

// AllowedDomain fails when the text after the first "@" is present but not
// in domains.
func AllowedDomain(domains []string) Rule {
	return func(value string) *Violation {
		if value == "" {
			return nil
		}
		parts := strings.Split(value, "@")
		if len(parts) < 2 || parts[1] == "" {
			return nil
		}
		if !slices.Contains(domains, parts[1]) {
			return &Violation{Kind: KindInvalidDomain}
		}
		return nil
	}
}

// NoWhitespace fails when a non-empty value is only whitespace.
func NoWhitespace() Rule {
	return func(value string) *Violation {
		if value != "" && strings.TrimSpace(value) == "" {
			return &Violation{Kind: KindWhitespace}
		}
		return nil
	}
}

// Integer fails when a non-empty value is not a whole number.
func Integer() Rule {
	return func(value string) *Violation {
		if value == "" {
			return nil
		}
		v, ok := parseNumber(value)
		if !ok || v != math.Trunc(v) {
			return &Violation{Kind: KindNotInteger}
		}
		return nil
	}
}

// DefaultRules is the rule set of the user form.
func DefaultRules() map[Field][]Rule {
	return map[Field][]Rule{
		FieldName: {
			Required(),
			MinLength(NameMinLength),
			MaxLength(NameMaxLength),
			NoWhitespace(),
		},
		FieldEmail: {
			Required(),
			Email(),
			AllowedDomain(AllowedDomains),
		},
		FieldAge: {
			Required(),
			Min(AgeMin),
			Max(AgeMax),
			Integer(),
		},
	}
}

// Check runs every rule against value and returns all violations.
func Check(rules []Rule, value string) []Violation {
	var out []Violation
	for _, rule := range rules {
		if v := rule(value); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// First picks the violation to report according to precedence.
func First(violations []Violation) (Violation, bool) {
	for _, kind := range precedence {
		for _, v := range violations {
			if v.Kind == kind {
				return v, true
			}
		}
	}
	if len(violations) > 0 {
		return violations[0], true
	}
	return Violation{}, false
}

var displayNames = map[Field]string{
	FieldName:     "Name",
	FieldEmail:    "Email",
	FieldAge:      "Age",
	FieldIsActive: "Status",
}

// Message renders v for field.
func Message(field Field, v Violation) string {
	name, ok := displayNames[field]
	if !ok {
		name = string(field)
	}

	switch v.Kind {
	case KindRequired:
		return name + " is required"
	case KindMinLength:
		return name + " must be at least " + strconv.Itoa(v.Limit) + " characters"
	case KindMaxLength:
		return name + " cannot exceed " + strconv.Itoa(v.Limit) + " characters"
	case KindMin:
		return name + " must be at least " + strconv.Itoa(v.Limit)
	case KindMax:
		return name + " cannot exceed " + strconv.Itoa(v.Limit)
	case KindEmail:
		return "Please enter a valid email address"
	case KindInvalidDomain:
		return "Email domain is not allowed"
	case KindWhitespace:
		return name + " cannot be empty or contain only spaces"
	case KindNotInteger:
		return "Age must be a whole number"
	}
	return "Invalid input"
}

func parseNumber(value string) (float64, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
