package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/nixlim/growwatch/internal/alerts"
)

// MemoryStore keeps notifications for the lifetime of the process. It is
// the fallback when no database is configured or it cannot be opened.
type MemoryStore struct {
	mu        sync.RWMutex
	alerts    []AlertRecord
	anomalies []AnomalyRecord
	now       func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Record implements alerts.Persister.
func (m *MemoryStore) Record(n alerts.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	switch n.Kind {
	case alerts.KindAlert:
		a := n.Alert
		m.alerts = append(m.alerts, AlertRecord{
			AlertID:    a.ID,
			Rule:       a.Rule,
			StartedAt:  a.StartedAt,
			FinishedAt: a.FinishedAt,
			Elapsed:    a.Elapsed(),
			RecordedAt: now,
		})
	case alerts.KindAnomaly:
		if n.Anomaly == nil {
			return
		}
		m.anomalies = append(m.anomalies, AnomalyRecord{
			Dimension:  string(n.Anomaly.Reading.Dimension),
			Value:      n.Anomaly.Reading.Value,
			ReadingAt:  n.Anomaly.Reading.Timestamp,
			CurrentAt:  n.Anomaly.Current,
			RecordedAt: now,
		})
	}
}

func (m *MemoryStore) QueryAlertHistory(days int, rule string) []AlertRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	since := m.since(days)
	var out []AlertRecord
	for _, r := range m.alerts {
		if r.RecordedAt.Before(since) || (rule != "" && r.Rule != rule) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinishedAt.Before(out[j].FinishedAt) })
	return out
}

func (m *MemoryStore) QueryAnomalies(days int) []AnomalyRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	since := m.since(days)
	var out []AnomalyRecord
	for _, r := range m.anomalies {
		if !r.RecordedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out
}

func (m *MemoryStore) QueryDailySummaries(days int) []DailySummary {
	type key struct{ date, rule string }
	totals := make(map[key]*DailySummary)
	for _, r := range m.QueryAlertHistory(days, "") {
		k := key{r.FinishedAt.UTC().Format("2006-01-02"), r.Rule}
		ds, ok := totals[k]
		if !ok {
			ds = &DailySummary{Date: k.date, Rule: k.rule}
			totals[k] = ds
		}
		ds.Alerts++
		ds.TotalSeconds += r.Elapsed.Seconds()
	}

	out := make([]DailySummary, 0, len(totals))
	for _, ds := range totals {
		out = append(out, *ds)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}

func (m *MemoryStore) DroppedWrites() int64 { return 0 }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) since(days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return m.now().AddDate(0, 0, -days)
}
