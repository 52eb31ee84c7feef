package models

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidRule = errors.New("invalid rule")

// Session is one recorded measurement run as returned by the telemetry API.
// The set of keys is open; the core only ever reads from it.
type Session map[string]any

var sessionIDKeys = []string{"id", "sessionId", "session_id", "uuid"}

func (s Session) ID() string {
	for _, key := range sessionIDKeys {
		switch v := s[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}

	return ""
}

type Kind string

const (
	KindNumber  Kind = "number"
	KindString  Kind = "string"
	KindBoolean Kind = "boolean"
	KindDate    Kind = "date"
)

type Condition string

const (
	CondGreater        Condition = ">"
	CondGreaterOrEqual Condition = ">="
	CondLess           Condition = "<"
	CondLessOrEqual    Condition = "<="
	CondEqual          Condition = "=="
	CondNotEqual       Condition = "!="
	CondBetween        Condition = "between"

	CondExists    Condition = "exists"
	CondNotExists Condition = "notExists"
	// CondNotNull is the existence check written by older number rules.
	CondNotNull Condition = "not_null"

	CondEquals      Condition = "equals"
	CondNotEquals   Condition = "notEquals"
	CondContains    Condition = "contains"
	CondNotContains Condition = "notContains"
	CondStartsWith  Condition = "startsWith"
	CondEndsWith    Condition = "endsWith"
	CondIsEmpty     Condition = "isEmpty"
	CondIsNotEmpty  Condition = "isNotEmpty"
	CondMatches     Condition = "matches"

	CondIsTrue  Condition = "isTrue"
	CondIsFalse Condition = "isFalse"

	CondBefore Condition = "before"
	CondAfter  Condition = "after"
	CondOn     Condition = "on"
)

type ValidationRule struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Field       string    `json:"field" yaml:"field"`
	Operator    Kind      `json:"operator" yaml:"operator"`
	Condition   Condition `json:"condition" yaml:"condition"`
	Value       any       `json:"value" yaml:"value"`
	Enabled     bool      `json:"enabled" yaml:"enabled"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

const (
	ResultPass = "pass"
	ResultFail = "fail"
)

type RuleOutcome struct {
	RuleID            string    `json:"ruleId"`
	RuleName          string    `json:"ruleName"`
	Field             string    `json:"field"`
	ExpectedCondition Condition `json:"expectedCondition"`
	ExpectedValue     any       `json:"expectedValue"`
	ActualValue       any       `json:"actualValue"`
	Passed            bool      `json:"passed"`
}

type ValidationResult struct {
	SessionID     string        `json:"sessionId"`
	AppName       string        `json:"appName"`
	DeviceModel   string        `json:"deviceModel"`
	Rules         []RuleOutcome `json:"rules"`
	OverallResult string        `json:"overallResult"`
}

func (r ValidationResult) Passed() bool {
	return r.OverallResult == ResultPass
}

// ValidationRun is a stored execution of the runner, kept for history.
type ValidationRun struct {
	ID           uuid.UUID          `json:"id"`
	CreatedAt    time.Time          `json:"createdAt"`
	RuleCount    int                `json:"ruleCount"`
	SessionCount int                `json:"sessionCount"`
	Passed       int                `json:"passed"`
	Failed       int                `json:"failed"`
	Labels       map[string]string  `json:"labels,omitempty"`
	Results      []ValidationResult `json:"results"`
}

type RunListItem struct {
	ID           uuid.UUID         `json:"id"`
	CreatedAt    time.Time         `json:"createdAt"`
	RuleCount    int               `json:"ruleCount"`
	SessionCount int               `json:"sessionCount"`
	Passed       int               `json:"passed"`
	Failed       int               `json:"failed"`
	Labels       map[string]string `json:"labels,omitempty"`
}

func NewValidationRun(ruleCount int, results []ValidationResult, labels map[string]string) *ValidationRun {
	run := &ValidationRun{
		ID:           uuid.New(),
		CreatedAt:    time.Now().UTC(),
		RuleCount:    ruleCount,
		SessionCount: len(results),
		Labels:       labels,
		Results:      results,
	}

	for _, r := range results {
		if r.Passed() {
			run.Passed++
		} else {
			run.Failed++
		}
	}

	return run
}

func (r *ValidationRun) ListItem() RunListItem {
	return RunListItem{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt,
		RuleCount:    r.RuleCount,
		SessionCount: r.SessionCount,
		Passed:       r.Passed,
		Failed:       r.Failed,
		Labels:       r.Labels,
	}
}
