package validate

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"prefs-manager/core/prefs"
)

// Rule checks one aspect of a value. A nil return means the rule
// passed.
type Rule interface {
	// Name identifies the rule in validation errors.
	Name() string
	// Check returns the failure for value, or nil.
	Check(value prefs.Value) *prefs.RuleError
}

// Validator is a rule registry implementing prefs.Validator. Keys with
// no registered rules validate successfully.
type Validator struct {
	mu    sync.RWMutex
	rules map[string][]Rule
}

// New returns an empty validator.
func New() *Validator {
	return &Validator{rules: make(map[string][]Rule)}
}

// Register adds rules for a preference key, appended after any rules
// already registered for it.
func (v *Validator) Register(key string, rules ...Rule) {
	v.mu.Lock()
	v.rules[key] = append(v.rules[key], rules...)
	v.mu.Unlock()
}

// Validate runs every rule registered for key against value. All rules
// run; the result collects every failure.
func (v *Validator) Validate(_ context.Context, key string, value prefs.Value) (prefs.ValidationResult, error) {
	v.mu.RLock()
	rules := v.rules[key]
	v.mu.RUnlock()

	var failures []prefs.RuleError
	for _, rule := range rules {
		if failure := rule.Check(value); failure != nil {
			failures = append(failures, *failure)
		}
	}
	return prefs.ValidationResult{Valid: len(failures) == 0, Errors: failures}, nil
}

// Required rejects null values.
func Required() Rule { return requiredRule{} }

type requiredRule struct{}

func (requiredRule) Name() string { return "required" }

func (requiredRule) Check(value prefs.Value) *prefs.RuleError {
	if value.IsNull() {
		return &prefs.RuleError{Rule: "required", Message: "value must not be null"}
	}
	return nil
}

// OfKind rejects values of any other kind.
func OfKind(kind prefs.Kind) Rule { return kindRule{kind: kind} }

type kindRule struct{ kind prefs.Kind }

func (r kindRule) Name() string { return "type" }

func (r kindRule) Check(value prefs.Value) *prefs.RuleError {
	if value.Kind() != r.kind {
		return &prefs.RuleError{
			Rule:    "type",
			Message: fmt.Sprintf("expected %s, got %s", r.kind, value.Kind()),
		}
	}
	return nil
}

// Range rejects numbers outside [min, max]. Non-numbers pass; combine
// with OfKind to also pin the kind.
func Range(min, max float64) Rule { return rangeRule{min: min, max: max} }

type rangeRule struct{ min, max float64 }

func (r rangeRule) Name() string { return "range" }

func (r rangeRule) Check(value prefs.Value) *prefs.RuleError {
	n, ok := value.AsNumber()
	if !ok {
		return nil
	}
	if n < r.min || n > r.max {
		return &prefs.RuleError{
			Rule:    "range",
			Message: fmt.Sprintf("%g is outside [%g, %g]", n, r.min, r.max),
		}
	}
	return nil
}

// MaxLength rejects strings longer than n. Non-strings pass.
func MaxLength(n int) Rule { return maxLengthRule{n: n} }

type maxLengthRule struct{ n int }

func (r maxLengthRule) Name() string { return "maxLength" }

func (r maxLengthRule) Check(value prefs.Value) *prefs.RuleError {
	s, ok := value.AsString()
	if !ok {
		return nil
	}
	if len(s) > r.n {
		return &prefs.RuleError{
			Rule:    "maxLength",
			Message: fmt.Sprintf("length %d exceeds maximum %d", len(s), r.n),
		}
	}
	return nil
}

// Pattern rejects strings not matching the expression. Non-strings
// pass.
func Pattern(expr string) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return patternRule{re: re}, nil
}

type patternRule struct{ re *regexp.Regexp }

func (r patternRule) Name() string { return "pattern" }

func (r patternRule) Check(value prefs.Value) *prefs.RuleError {
	s, ok := value.AsString()
	if !ok {
		return nil
	}
	if !r.re.MatchString(s) {
		return &prefs.RuleError{
			Rule:    "pattern",
			Message: fmt.Sprintf("%q does not match %s", s, r.re.String()),
		}
	}
	return nil
}

// OneOf rejects values equal to none of the allowed candidates.
func OneOf(allowed ...prefs.Value) Rule { return enumRule{allowed: allowed} }

type enumRule struct{ allowed []prefs.Value }

func (r enumRule) Name() string { return "enum" }

func (r enumRule) Check(value prefs.Value) *prefs.RuleError {
	for _, candidate := range r.allowed {
		if value.Equal(candidate) {
			return nil
		}
	}
	return &prefs.RuleError{Rule: "enum", Message: fmt.Sprintf("%s is not an allowed value", value)}
}
