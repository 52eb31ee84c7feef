package rules

import (
	"regexp"
	"strings"

	"github.com/kx0101/sessioncheck/internal/models"
)

// Evaluate reports whether session satisfies rule. It never panics: missing
// data, failed coercions and malformed rule values all fail the rule.
func Evaluate(session models.Session, rule models.ValidationRule) bool {
	return evaluate(Resolve(session, rule.Field), rule)
}

// EvaluateOutcome is Evaluate plus the audit trail shown in results.
func EvaluateOutcome(session models.Session, rule models.ValidationRule) models.RuleOutcome {
	actual := Resolve(session, rule.Field)

	return models.RuleOutcome{
		RuleID:            rule.ID,
		RuleName:          rule.Name,
		Field:             rule.Field,
		ExpectedCondition: rule.Condition,
		ExpectedValue:     rule.Value,
		ActualValue:       actual.Interface(),
		Passed:            evaluate(actual, rule),
	}
}

func evaluate(actual Value, rule models.ValidationRule) bool {
	switch rule.Condition {
	case models.CondExists, models.CondNotNull:
		return !actual.IsMissing()
	case models.CondNotExists:
		return actual.IsMissing()
	}

	// Incomplete telemetry never passes.
	if actual.IsMissing() {
		return false
	}

	switch rule.Operator {
	case models.KindString:
		return evaluateString(actual, rule.Condition, rule.Value)
	case models.KindNumber:
		return evaluateNumber(actual, rule.Condition, rule.Value)
	case models.KindBoolean:
		return evaluateBoolean(actual, rule.Condition, rule.Value)
	case models.KindDate:
		return evaluateDate(actual, rule.Condition, rule.Value)
	default:
		return false
	}
}

func evaluateString(actual Value, condition models.Condition, expected any) bool {
	got := toString(actual)
	want := toString(ValueOf(expected))

	switch condition {
	case models.CondEquals:
		return got == want
	case models.CondNotEquals:
		return got != want
	case models.CondContains:
		return strings.Contains(got, want)
	case models.CondNotContains:
		return !strings.Contains(got, want)
	case models.CondStartsWith:
		return strings.HasPrefix(got, want)
	case models.CondEndsWith:
		return strings.HasSuffix(got, want)
	case models.CondIsEmpty:
		return got == ""
	case models.CondIsNotEmpty:
		return got != ""
	case models.CondMatches:
		re, err := regexp.Compile(want)
		if err != nil {
			return false
		}

		return re.MatchString(got)
	default:
		return false
	}
}

func evaluateNumber(actual Value, condition models.Condition, expected any) bool {
	got, ok := toNumber(actual)
	if !ok {
		return false
	}

	if condition == models.CondBetween {
		lo, hi, ok := bounds(expected)
		if !ok {
			return false
		}

		lower, okLower := toNumber(lo)
		upper, okUpper := toNumber(hi)
		if !okLower || !okUpper {
			return false
		}

		return lower <= got && got <= upper
	}

	want, ok := toNumber(ValueOf(expected))
	if !ok {
		return false
	}

	// Plain IEEE comparison, no epsilon.
	switch condition {
	case models.CondGreater:
		return got > want
	case models.CondGreaterOrEqual:
		return got >= want
	case models.CondLess:
		return got < want
	case models.CondLessOrEqual:
		return got <= want
	case models.CondEqual:
		return got == want
	case models.CondNotEqual:
		return got != want
	default:
		return false
	}
}

func evaluateBoolean(actual Value, condition models.Condition, expected any) bool {
	got := truthy(actual)

	switch condition {
	case models.CondIsTrue:
		return got
	case models.CondIsFalse:
		return !got
	case models.CondEquals:
		return got == truthy(ValueOf(expected))
	default:
		return false
	}
}

func evaluateDate(actual Value, condition models.Condition, expected any) bool {
	got, ok := toTime(actual)
	if !ok {
		return false
	}

	if condition == models.CondBetween {
		lo, hi, ok := bounds(expected)
		if !ok {
			return false
		}

		start, okStart := toTime(lo)
		end, okEnd := toTime(hi)
		if !okStart || !okEnd {
			return false
		}

		ms := got.UnixMilli()

		return start.UnixMilli() <= ms && ms <= end.UnixMilli()
	}

	want, ok := toTime(ValueOf(expected))
	if !ok {
		return false
	}

	switch condition {
	case models.CondBefore:
		return got.UnixMilli() < want.UnixMilli()
	case models.CondAfter:
		return got.UnixMilli() > want.UnixMilli()
	case models.CondOn:
		gy, gm, gd := got.UTC().Date()
		wy, wm, wd := want.UTC().Date()

		return gy == wy && gm == wm && gd == wd
	default:
		return false
	}
}
