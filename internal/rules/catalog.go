package rules

import (
	"strings"

	"github.com/kx0101/sessioncheck/internal/models"
)

type ConditionOption struct {
	Condition models.Condition `json:"condition"`
	Label     string           `json:"label"`
}

var catalog = map[models.Kind][]ConditionOption{
	models.KindNumber: {
		{models.CondGreater, "Greater than"},
		{models.CondGreaterOrEqual, "Greater than or equal"},
		{models.CondLess, "Less than"},
		{models.CondLessOrEqual, "Less than or equal"},
		{models.CondEqual, "Equal to"},
		{models.CondNotEqual, "Not equal to"},
		{models.CondBetween, "Between"},
		{models.CondExists, "Exists"},
		{models.CondNotExists, "Does not exist"},
	},
	models.KindString: {
		{models.CondEquals, "Equals"},
		{models.CondNotEquals, "Does not equal"},
		{models.CondContains, "Contains"},
		{models.CondNotContains, "Does not contain"},
		{models.CondStartsWith, "Starts with"},
		{models.CondEndsWith, "Ends with"},
		{models.CondIsEmpty, "Is empty"},
		{models.CondIsNotEmpty, "Is not empty"},
		{models.CondMatches, "Matches regex"},
		{models.CondExists, "Exists"},
		{models.CondNotExists, "Does not exist"},
	},
	models.KindBoolean: {
		{models.CondIsTrue, "Is true"},
		{models.CondIsFalse, "Is false"},
		{models.CondEquals, "Equals"},
		{models.CondExists, "Exists"},
		{models.CondNotExists, "Does not exist"},
	},
	models.KindDate: {
		{models.CondBefore, "Before"},
		{models.CondAfter, "After"},
		{models.CondOn, "On"},
		{models.CondBetween, "Between"},
		{models.CondExists, "Exists"},
		{models.CondNotExists, "Does not exist"},
	},
}

var kinds = []models.Kind{models.KindNumber, models.KindString, models.KindBoolean, models.KindDate}

// Checked in order; the first group with a matching substring wins.
var kindHints = []struct {
	kind       models.Kind
	substrings []string
}{
	{models.KindDate, []string{"date", "timestamp", "timepushed"}},
	{models.KindBoolean, []string{"isactive", "ischarging", "isshared"}},
	{models.KindString, []string{"name", "model", "manufacturer", "id", "uuid", "package", "recordedby", "version", "vendor", "renderer", "tag"}},
}

func Kinds() []models.Kind {
	out := make([]models.Kind, len(kinds))
	copy(out, kinds)

	return out
}

func IsValidKind(kind models.Kind) bool {
	_, ok := catalog[kind]
	return ok
}

// ConditionsFor returns the legal conditions for kind, in display order.
func ConditionsFor(kind models.Kind) []ConditionOption {
	options, ok := catalog[kind]
	if !ok {
		return nil
	}

	out := make([]ConditionOption, len(options))
	copy(out, options)

	return out
}

func IsValidCondition(kind models.Kind, condition models.Condition) bool {
	if condition == models.CondNotNull {
		return kind == models.KindNumber
	}

	for _, option := range catalog[kind] {
		if option.Condition == condition {
			return true
		}
	}

	return false
}

func IsExistenceCondition(condition models.Condition) bool {
	switch condition {
	case models.CondExists, models.CondNotExists, models.CondNotNull:
		return true
	default:
		return false
	}
}

// KindFor guesses a value kind from a field path. It only seeds new rules;
// a stored rule's operator always wins.
func KindFor(field string) models.Kind {
	lower := strings.ToLower(field)

	for _, hint := range kindHints {
		for _, sub := range hint.substrings {
			if strings.Contains(lower, sub) {
				return hint.kind
			}
		}
	}

	return models.KindNumber
}
