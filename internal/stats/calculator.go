// Package stats computes aggregate statistics over emitted alerts. All
// functions are pure computations with no side effects.
package stats

import (
	"sort"

	"github.com/nixlim/growwatch/internal/alerts"
)

// Compute summarises alerts and anomalies. Rules are ordered by total
// alert time, longest first, with ties broken by name.
func Compute(as []alerts.Alert, anomalies []alerts.OrderingAnomaly) Summary {
	s := Summary{
		Alerts:    len(as),
		Anomalies: len(anomalies),
	}

	s.Rules = computeRuleBreakdown(as)
	for _, r := range s.Rules {
		s.Total += r.Total
	}
	s.ByDim = computeAnomalyBreakdown(anomalies)
	return s
}

func computeRuleBreakdown(as []alerts.Alert) []RuleStats {
	byRule := make(map[string]*RuleStats)
	for _, a := range as {
		rs, ok := byRule[a.Rule]
		if !ok {
			rs = &RuleStats{Rule: a.Rule, First: a.StartedAt, Last: a.FinishedAt}
			byRule[a.Rule] = rs
		}
		elapsed := a.Elapsed()
		rs.Alerts++
		rs.Total += elapsed
		if elapsed > rs.Longest {
			rs.Longest = elapsed
		}
		if a.StartedAt.Before(rs.First) {
			rs.First = a.StartedAt
		}
		if a.FinishedAt.After(rs.Last) {
			rs.Last = a.FinishedAt
		}
	}

	result := make([]RuleStats, 0, len(byRule))
	for _, rs := range byRule {
		result = append(result, *rs)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Total != result[j].Total {
			return result[i].Total > result[j].Total
		}
		return result[i].Rule < result[j].Rule
	})
	return result
}

// computeAnomalyBreakdown counts out-of-order readings per dimension.
func computeAnomalyBreakdown(anomalies []alerts.OrderingAnomaly) map[string]int {
	if len(anomalies) == 0 {
		return nil
	}
	out := make(map[string]int)
	for _, a := range anomalies {
		out[string(a.Reading.Dimension)]++
	}
	return out
}
