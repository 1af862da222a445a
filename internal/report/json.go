package report

import (
	"encoding/json"
	"io"
	"time"
)

type jsonRow struct {
	AlertID    string    `json:"alert_id,omitempty"`
	Rule       string    `json:"rule"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`
	Seconds    int64     `json:"elapsed_seconds"`
}

type jsonAnomaly struct {
	Dimension string    `json:"dimension"`
	Value     float64   `json:"value"`
	ReadingAt time.Time `json:"reading_at"`
	CurrentAt time.Time `json:"current_at"`
}

type jsonRuleStats struct {
	Rule         string `json:"rule"`
	Alerts       int    `json:"alerts"`
	Total        string `json:"total"`
	Longest      string `json:"longest"`
	TotalSeconds int64  `json:"total_seconds"`
}

type jsonReport struct {
	Alerts    []jsonRow       `json:"alerts"`
	Anomalies []jsonAnomaly   `json:"anomalies"`
	Rules     []jsonRuleStats `json:"rules"`
}

// RenderJSON writes rep as an indented JSON document.
func RenderJSON(w io.Writer, rep Report) error {
	out := jsonReport{
		Alerts:    make([]jsonRow, 0, len(rep.Rows)),
		Anomalies: make([]jsonAnomaly, 0, len(rep.Anomalies)),
		Rules:     []jsonRuleStats{},
	}
	for _, r := range rep.Rows {
		out.Alerts = append(out.Alerts, jsonRow{
			AlertID:    r.AlertID,
			Rule:       r.Rule,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			Duration:   FormatDuration(r.Elapsed),
			Seconds:    int64(r.Elapsed.Seconds()),
		})
	}
	for _, a := range rep.Anomalies {
		out.Anomalies = append(out.Anomalies, jsonAnomaly{
			Dimension: string(a.Reading.Dimension),
			Value:     a.Reading.Value,
			ReadingAt: a.Reading.Timestamp,
			CurrentAt: a.Current,
		})
	}
	for _, rs := range rep.Summary().Rules {
		out.Rules = append(out.Rules, jsonRuleStats{
			Rule:         rs.Rule,
			Alerts:       rs.Alerts,
			Total:        FormatDuration(rs.Total),
			Longest:      FormatDuration(rs.Longest),
			TotalSeconds: int64(rs.Total.Seconds()),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
