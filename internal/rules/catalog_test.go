package rules

import (
	"testing"

	"github.com/kx0101/sessioncheck/internal/models"
)

func TestConditionsFor(t *testing.T) {
	tests := []struct {
		kind  models.Kind
		first models.Condition
		count int
	}{
		{models.KindNumber, models.CondGreater, 9},
		{models.KindString, models.CondEquals, 11},
		{models.KindBoolean, models.CondIsTrue, 5},
		{models.KindDate, models.CondBefore, 6},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			options := ConditionsFor(tt.kind)
			if len(options) != tt.count {
				t.Fatalf("expected %d conditions, got %d", tt.count, len(options))
			}

			if options[0].Condition != tt.first {
				t.Errorf("expected %s first, got %s", tt.first, options[0].Condition)
			}

			last := options[len(options)-2:]
			if last[0].Condition != models.CondExists || last[1].Condition != models.CondNotExists {
				t.Errorf("existence checks should close the list, got %v", last)
			}

			for _, opt := range options {
				if opt.Label == "" {
					t.Errorf("condition %s has no label", opt.Condition)
				}

				if !IsValidCondition(tt.kind, opt.Condition) {
					t.Errorf("listed condition %s rejected", opt.Condition)
				}
			}
		})
	}

	if ConditionsFor("color") != nil {
		t.Error("unknown kind should have no conditions")
	}

	options := ConditionsFor(models.KindNumber)
	options[0].Label = "changed"
	if ConditionsFor(models.KindNumber)[0].Label == "changed" {
		t.Error("ConditionsFor should return a copy")
	}
}

func TestIsValidCondition(t *testing.T) {
	tests := []struct {
		kind models.Kind
		cond models.Condition
		want bool
	}{
		{models.KindNumber, models.CondBetween, true},
		{models.KindNumber, models.CondNotNull, true},
		{models.KindString, models.CondNotNull, false},
		{models.KindString, models.CondGreater, false},
		{models.KindBoolean, models.CondEquals, true},
		{models.KindBoolean, models.CondContains, false},
		{models.KindDate, models.CondOn, true},
		{models.KindDate, models.CondEqual, false},
		{"color", models.CondExists, false},
	}

	for _, tt := range tests {
		if got := IsValidCondition(tt.kind, tt.cond); got != tt.want {
			t.Errorf("IsValidCondition(%s, %s) = %v, want %v", tt.kind, tt.cond, got, tt.want)
		}
	}
}

func TestKindFor(t *testing.T) {
	tests := []struct {
		field string
		want  models.Kind
	}{
		{"fps.min", models.KindNumber},
		{"battery.drain", models.KindNumber},
		{"session.date", models.KindDate},
		{"session.timePushed", models.KindDate},
		{"createdTimestamp", models.KindDate},
		{"session.isActive", models.KindBoolean},
		{"session.isCharging", models.KindBoolean},
		{"app.name", models.KindString},
		{"device.model", models.KindString},
		{"device.manufacturer", models.KindString},
		{"app.packageName", models.KindString},
		{"gpu.vendor", models.KindString},
		{"session.id", models.KindString},
		// substring heuristic: "androidSdk" contains "id"
		{"device.androidSdk", models.KindString},
		{"", models.KindNumber},
	}

	for _, tt := range tests {
		if got := KindFor(tt.field); got != tt.want {
			t.Errorf("KindFor(%q) = %s, want %s", tt.field, got, tt.want)
		}
	}
}

func TestKindsAndExistence(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != 4 || kinds[0] != models.KindNumber {
		t.Errorf("unexpected kinds: %v", kinds)
	}

	for _, k := range kinds {
		if !IsValidKind(k) {
			t.Errorf("%s should be valid", k)
		}
	}

	if IsValidKind("") {
		t.Error("empty kind should be invalid")
	}

	for cond, want := range map[models.Condition]bool{
		models.CondExists:    true,
		models.CondNotExists: true,
		models.CondNotNull:   true,
		models.CondIsEmpty:   false,
		models.CondEqual:     false,
	} {
		if got := IsExistenceCondition(cond); got != want {
			t.Errorf("IsExistenceCondition(%s) = %v", cond, got)
		}
	}
}
