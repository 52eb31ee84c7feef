package stats

import (
	"math"

	"github.com/kx0101/sessioncheck/internal/models"
)

type Summary struct {
	TotalSessions int         `json:"totalSessions"`
	Passed        int         `json:"passed"`
	Failed        int         `json:"failed"`
	PassRate      float64     `json:"passRate"`
	ByRule        []RuleStats `json:"byRule"`
}

type RuleStats struct {
	RuleID   string  `json:"ruleId"`
	RuleName string  `json:"ruleName"`
	Field    string  `json:"field"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Missing  int     `json:"missing"`
	PassRate float64 `json:"passRate"`
}

// Summarize aggregates results; ByRule is in first-seen order.
func Summarize(results []models.ValidationResult) Summary {
	summary := Summary{TotalSessions: len(results)}

	index := map[string]int{}
	for _, r := range results {
		if r.Passed() {
			summary.Passed++
		} else {
			summary.Failed++
		}

		for _, outcome := range r.Rules {
			key := outcome.RuleID
			if key == "" {
				key = outcome.RuleName + "\x00" + outcome.Field
			}

			idx, ok := index[key]
			if !ok {
				idx = len(summary.ByRule)
				index[key] = idx
				summary.ByRule = append(summary.ByRule, RuleStats{
					RuleID:   outcome.RuleID,
					RuleName: outcome.RuleName,
					Field:    outcome.Field,
				})
			}

			rs := &summary.ByRule[idx]
			if outcome.Passed {
				rs.Passed++
			} else {
				rs.Failed++
			}

			if outcome.ActualValue == nil {
				rs.Missing++
			}
		}
	}

	summary.PassRate = Percent(summary.Passed, summary.TotalSessions)
	for i := range summary.ByRule {
		rs := &summary.ByRule[i]
		rs.PassRate = Percent(rs.Passed, rs.Passed+rs.Failed)
	}

	return summary
}

// Percent is part/total as a percentage rounded to two decimals; 0 when
// total is 0.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}

	return math.Round(float64(part)/float64(total)*10000) / 100
}
