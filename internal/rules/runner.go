package rules

import (
	"sync"

	"github.com/kx0101/sessioncheck/internal/models"
)

// EnabledRules copies the enabled rules out of rules, keeping their order.
// The copy is the snapshot a run works from.
func EnabledRules(rules []models.ValidationRule) []models.ValidationRule {
	enabled := make([]models.ValidationRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}

	return enabled
}

// Run validates every session against the enabled rules. One result per
// session, in input order; outcomes follow rule order.
func Run(sessions []models.Session, rules []models.ValidationRule) []models.ValidationResult {
	enabled := EnabledRules(rules)

	results := make([]models.ValidationResult, 0, len(sessions))
	for _, session := range sessions {
		results = append(results, validateSession(session, enabled))
	}

	return results
}

// RunParallel is Run with sessions spread over at most workers goroutines.
func RunParallel(sessions []models.Session, rules []models.ValidationRule, workers int) []models.ValidationResult {
	if workers <= 1 || len(sessions) < 2 {
		return Run(sessions, rules)
	}

	enabled := EnabledRules(rules)
	results := make([]models.ValidationResult, len(sessions))

	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, session := range sessions {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(idx int, s models.Session) {
			defer wg.Done()
			defer func() {
				<-semaphore
			}()

			results[idx] = validateSession(s, enabled)
		}(i, session)
	}

	wg.Wait()

	return results
}

func validateSession(session models.Session, enabled []models.ValidationRule) models.ValidationResult {
	outcomes := make([]models.RuleOutcome, 0, len(enabled))
	overall := models.ResultPass

	for _, rule := range enabled {
		outcome := EvaluateOutcome(session, rule)
		if !outcome.Passed {
			overall = models.ResultFail
		}

		outcomes = append(outcomes, outcome)
	}

	return models.ValidationResult{
		SessionID:     session.ID(),
		AppName:       firstString(session, "app.name", "app.packageName"),
		DeviceModel:   firstString(session, "device.model"),
		Rules:         outcomes,
		OverallResult: overall,
	}
}

func firstString(session models.Session, paths ...string) string {
	for _, path := range paths {
		if s := Resolve(session, path).String(); s != "" {
			return s
		}
	}

	return ""
}

// AllPassed reports whether every result passed; true for no results.
func AllPassed(results []models.ValidationResult) bool {
	for _, r := range results {
		if !r.Passed() {
			return false
		}
	}

	return true
}
