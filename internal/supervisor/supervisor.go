// Package supervisor implements the rule-evaluation engine. A Supervisor
// merges readings into an environment snapshot, evaluates every rule on each
// push, tracks how long each rule has been matching and emits an alert when
// a match that outlasted its rule's duration ends.
package supervisor

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nixlim/growwatch/internal/alerts"
	"github.com/nixlim/growwatch/internal/logger"
	"github.com/nixlim/growwatch/internal/rules"
	"github.com/nixlim/growwatch/internal/sensor"
)

// Situation is an open span during which a rule has matched continuously.
type Situation struct {
	Rule      *rules.Rule
	StartedAt time.Time
}

// Supervisor owns the environment, the open situations and the set of rules
// that have already alerted. Push is its only mutator.
type Supervisor struct {
	// mu serialises the whole of Push, including notification delivery, so
	// alerts leave in the order their windows end.
	mu         sync.Mutex
	rules      []*rules.Rule
	env        sensor.Environment
	situations map[string]Situation
	pastAlerts map[string]struct{}

	broadcaster *alerts.Broadcaster
	newID       func() string
	log         zerolog.Logger

	pushed    atomic.Uint64
	anomalies atomic.Uint64
	alerted   atomic.Uint64
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithIDGenerator overrides how alert IDs are generated.
func WithIDGenerator(fn func() string) Option {
	return func(s *Supervisor) {
		s.newID = fn
	}
}

// WithLogger overrides the supervisor's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Supervisor) {
		s.log = l
	}
}

// New builds a supervisor over set. The set is validated and kept in the
// given order, which is also the order in which simultaneous alerts are
// emitted.
func New(set []*rules.Rule, opts ...Option) (*Supervisor, error) {
	if err := rules.ValidateSet(set); err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	s := &Supervisor{
		rules:       append([]*rules.Rule(nil), set...),
		env:         sensor.NewEnvironment(),
		situations:  make(map[string]Situation),
		pastAlerts:  make(map[string]struct{}),
		broadcaster: alerts.NewBroadcaster(),
		newID:       func() string { return uuid.NewString() },
		log:         logger.WithComponent("supervisor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Subscribe registers fn for every future notification. Listeners run on
// the pushing goroutine while the supervisor is locked and must not call
// Push themselves.
func (s *Supervisor) Subscribe(fn alerts.Listener) *alerts.Subscription {
	return s.broadcaster.Subscribe(fn)
}

// Push merges reading into the environment, re-evaluates every rule and
// delivers any resulting notifications before returning.
func (s *Supervisor) Push(reading sensor.SensorValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushed.Add(1)

	if reading.Timestamp.Before(s.env.Timestamp) {
		anomaly := alerts.OrderingAnomaly{Reading: reading, Current: s.env.Timestamp}
		s.anomalies.Add(1)
		s.log.Warn().
			Str("dimension", string(reading.Dimension)).
			Time("reading_at", reading.Timestamp).
			Time("current", s.env.Timestamp).
			Msg("out-of-order reading")
		s.broadcaster.Publish(alerts.AnomalyNotification(anomaly))
	}

	s.env.Merge(reading)
	now := s.env.Timestamp

	matching := make(map[string]bool, len(s.rules))
	for _, r := range s.rules {
		if s.preconditionsMetLocked(r) && r.Evaluate(s.env) {
			matching[r.Name] = true
		}
	}

	for _, r := range s.rules {
		situation, open := s.situations[r.Name]
		if !open || matching[r.Name] {
			continue
		}
		delete(s.situations, r.Name)

		if now.Sub(situation.StartedAt) <= r.Duration {
			s.log.Debug().
				Str("rule", r.Name).
				Time("started_at", situation.StartedAt).
				Dur("elapsed", now.Sub(situation.StartedAt)).
				Msg("transient match dropped")
			continue
		}

		alert := alerts.Alert{
			ID:         s.newID(),
			Rule:       r.Name,
			StartedAt:  situation.StartedAt,
			FinishedAt: now,
		}
		s.pastAlerts[r.Name] = struct{}{}
		s.alerted.Add(1)
		s.log.Info().
			Str("rule", r.Name).
			Time("started_at", alert.StartedAt).
			Time("finished_at", alert.FinishedAt).
			Dur("elapsed", alert.Elapsed()).
			Msg("alert emitted")
		s.broadcaster.Publish(alerts.AlertNotification(alert))
	}

	for _, r := range s.rules {
		if !matching[r.Name] {
			continue
		}
		if _, open := s.situations[r.Name]; !open {
			s.situations[r.Name] = Situation{Rule: r, StartedAt: now}
		}
	}
}

// preconditionsMetLocked reports whether every precondition of r has
// already alerted. Caller must hold s.mu.
func (s *Supervisor) preconditionsMetLocked(r *rules.Rule) bool {
	for _, p := range r.Preconditions {
		if _, ok := s.pastAlerts[p.Name]; !ok {
			return false
		}
	}
	return true
}

// Rules returns the supervised rules in evaluation order.
func (s *Supervisor) Rules() []*rules.Rule {
	return append([]*rules.Rule(nil), s.rules...)
}

// Snapshot is a point-in-time copy of the supervisor state.
type Snapshot struct {
	Environment sensor.Environment `json:"environment"`
	Open        []OpenSituation    `json:"open_situations"`
	PastAlerts  []string           `json:"past_alerts"`
}

// OpenSituation is the exported, copyable form of a Situation.
type OpenSituation struct {
	Rule      string    `json:"rule"`
	StartedAt time.Time `json:"started_at"`
}

// Snapshot returns copies of the environment, the open situations (in rule
// order) and the names of rules that have alerted (sorted).
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Environment: s.env.Clone()}
	for _, r := range s.rules {
		if sit, ok := s.situations[r.Name]; ok {
			snap.Open = append(snap.Open, OpenSituation{Rule: r.Name, StartedAt: sit.StartedAt})
		}
	}
	for name := range s.pastAlerts {
		snap.PastAlerts = append(snap.PastAlerts, name)
	}
	sort.Strings(snap.PastAlerts)
	return snap
}

// OpenSituations returns the number of rules currently matching.
func (s *Supervisor) OpenSituations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.situations)
}

// Stats holds supervisor counters.
type Stats struct {
	Pushed    uint64 `json:"pushed"`
	Anomalies uint64 `json:"anomalies"`
	Alerts    uint64 `json:"alerts"`
}

// Stats returns supervisor counters.
func (s *Supervisor) Stats() Stats {
	return Stats{
		Pushed:    s.pushed.Load(),
		Anomalies: s.anomalies.Load(),
		Alerts:    s.alerted.Load(),
	}
}
