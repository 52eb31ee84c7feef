package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kx0101/sessioncheck/internal/models"
)

type RulesConfig struct {
	Rules []models.ValidationRule `yaml:"rules" json:"rules"`
}

func ParseRulesFile(path string) (*RulesConfig, error) {
	data, err := ReadFileSafe(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	return ParseRules(data)
}

// ParseRules decodes a rules document. JSON is accepted too since it is
// valid YAML.
func ParseRules(data []byte) (*RulesConfig, error) {
	var config RulesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse rules YAML: %v", models.ErrInvalidRule, err)
	}

	Normalize(config.Rules)

	if err := ValidateRules(config.Rules); err != nil {
		return nil, fmt.Errorf("invalid rules configuration: %w", err)
	}

	return &config, nil
}

func MarshalRules(rules []models.ValidationRule) ([]byte, error) {
	data, err := yaml.Marshal(&RulesConfig{Rules: rules})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rules: %w", err)
	}

	return data, nil
}

// Normalize fills in what authors may leave out: the operator defaults to
// the kind inferred from the field, the name to the field itself.
func Normalize(rules []models.ValidationRule) {
	for i := range rules {
		rules[i].Field = strings.TrimSpace(rules[i].Field)

		if rules[i].Operator == "" {
			rules[i].Operator = KindFor(rules[i].Field)
		}

		if strings.TrimSpace(rules[i].Name) == "" {
			rules[i].Name = rules[i].Field
		}
	}
}

func ValidateRules(rules []models.ValidationRule) error {
	seen := make(map[string]bool, len(rules))

	for i, rule := range rules {
		if err := ValidateRule(rule); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}

		if rule.ID == "" {
			continue
		}

		if seen[rule.ID] {
			return fmt.Errorf("rules[%d]: %w: duplicate id %q", i, models.ErrInvalidRule, rule.ID)
		}

		seen[rule.ID] = true
	}

	return nil
}

// ValidateRule checks a rule's configuration: the condition must belong to
// the operator's vocabulary and the value must have the matching shape.
func ValidateRule(rule models.ValidationRule) error {
	if rule.Field == "" {
		return fmt.Errorf("%w: field is required", models.ErrInvalidRule)
	}

	if rule.Enabled && strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: name is required for enabled rules", models.ErrInvalidRule)
	}

	if !IsValidKind(rule.Operator) {
		return fmt.Errorf("%w: invalid operator '%s', must be one of: number, string, boolean, date", models.ErrInvalidRule, rule.Operator)
	}

	if !IsValidCondition(rule.Operator, rule.Condition) {
		return fmt.Errorf("%w: condition '%s' is not valid for %s fields", models.ErrInvalidRule, rule.Condition, rule.Operator)
	}

	if err := validateValue(rule); err != nil {
		return fmt.Errorf("%w: %s", models.ErrInvalidRule, err)
	}

	return nil
}

func validateValue(rule models.ValidationRule) error {
	switch rule.Condition {
	case models.CondExists, models.CondNotExists, models.CondNotNull,
		models.CondIsEmpty, models.CondIsNotEmpty,
		models.CondIsTrue, models.CondIsFalse:
		return nil
	}

	if rule.Condition == models.CondBetween {
		lo, hi, ok := bounds(rule.Value)
		if !ok {
			return fmt.Errorf("between expects a [min, max] value, got %v", rule.Value)
		}

		return validateBounds(rule.Operator, lo, hi)
	}

	if isTuple(rule.Value) {
		return fmt.Errorf("condition '%s' expects a single value, got a list", rule.Condition)
	}

	v := ValueOf(rule.Value)

	switch rule.Operator {
	case models.KindNumber:
		if _, ok := toNumber(v); !ok || v.Kind() == ValueBool {
			return fmt.Errorf("value %v is not a number", rule.Value)
		}
	case models.KindString:
		if v.Kind() != ValueString && v.Kind() != ValueNumber {
			return fmt.Errorf("value %v is not a string", rule.Value)
		}

		if rule.Condition == models.CondMatches {
			if _, err := regexp.Compile(toString(v)); err != nil {
				return fmt.Errorf("invalid regular expression: %w", err)
			}
		}
	case models.KindBoolean:
		if v.Kind() != ValueBool {
			return fmt.Errorf("value %v is not a boolean", rule.Value)
		}
	case models.KindDate:
		if _, ok := toTime(v); !ok || v.Kind() == ValueBool {
			return fmt.Errorf("value %v is not a date", rule.Value)
		}
	}

	return nil
}

func validateBounds(kind models.Kind, lo, hi Value) error {
	switch kind {
	case models.KindNumber:
		lower, okLower := toNumber(lo)
		upper, okUpper := toNumber(hi)
		if !okLower || !okUpper {
			return fmt.Errorf("between bounds must be numbers")
		}

		if lower > upper {
			return fmt.Errorf("between lower bound %v is greater than upper bound %v", lower, upper)
		}
	case models.KindDate:
		start, okStart := toTime(lo)
		end, okEnd := toTime(hi)
		if !okStart || !okEnd {
			return fmt.Errorf("between bounds must be dates")
		}

		if start.After(end) {
			return fmt.Errorf("between start date is after end date")
		}
	}

	return nil
}

func ReadFileSafe(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if cleanPath == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid path")
	}

	return os.ReadFile(cleanPath)
}
