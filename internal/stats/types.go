package stats

import "time"

// Summary holds the aggregate statistics of a set of alerts.
type Summary struct {
	Alerts    int            `json:"alerts"`
	Anomalies int            `json:"anomalies"`
	Total     time.Duration  `json:"-"`
	Rules     []RuleStats    `json:"rules"`
	ByDim     map[string]int `json:"anomalies_by_dimension,omitempty"`
}

// RuleStats holds alert counts and durations for one rule.
type RuleStats struct {
	Rule    string        `json:"rule"`
	Alerts  int           `json:"alerts"`
	Total   time.Duration `json:"-"`
	Longest time.Duration `json:"-"`
	First   time.Time     `json:"first_started_at"`
	Last    time.Time     `json:"last_finished_at"`
}

// Mean returns the average alert duration, or zero without alerts.
func (r RuleStats) Mean() time.Duration {
	if r.Alerts == 0 {
		return 0
	}
	return r.Total / time.Duration(r.Alerts)
}
