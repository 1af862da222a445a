package sink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nixlim/growwatch/internal/alerts"
	"github.com/nixlim/growwatch/internal/sensor"
)

type fakeWriter struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	err     error
	block   chan struct{}
	entered chan struct{}
	closed  bool
	batches int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.entered != nil {
		select {
		case w.entered <- struct{}{}:
		default:
		}
	}
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches++
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

var t0 = time.Date(2016, 8, 1, 0, 5, 0, 0, time.UTC)

func alertNote(rule string) alerts.Notification {
	return alerts.AlertNotification(alerts.Alert{
		ID:         "id-" + rule,
		Rule:       rule,
		StartedAt:  t0,
		FinishedAt: t0.Add(2 * time.Hour),
	})
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestMessage_Alert(t *testing.T) {
	msg, err := Message(alertNote("Botrytis"))
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if string(msg.Key) != "Botrytis" {
		t.Errorf("key: want Botrytis, got %s", msg.Key)
	}
	if header(msg, "kind") != "alert" || header(msg, "rule") != "Botrytis" {
		t.Errorf("headers: got %+v", msg.Headers)
	}
	if !msg.Time.Equal(t0.Add(2 * time.Hour)) {
		t.Errorf("time: want finish time, got %s", msg.Time)
	}

	var decoded alerts.Notification
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if decoded.Alert.ID != "id-Botrytis" || decoded.Kind != alerts.KindAlert {
		t.Errorf("decoded: got %+v", decoded)
	}
}

func TestMessage_Anomaly(t *testing.T) {
	n := alerts.AnomalyNotification(alerts.OrderingAnomaly{
		Reading: sensor.SensorValue{Timestamp: t0, Dimension: sensor.Humidity, Value: 91},
		Current: t0.Add(time.Minute),
	})
	msg, err := Message(n)
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if string(msg.Key) != "anomaly/humidity" {
		t.Errorf("key: got %s", msg.Key)
	}
	if header(msg, "kind") != "anomaly" {
		t.Errorf("kind header: got %q", header(msg, "kind"))
	}
}

func TestPublisher_PublishesInOrderAndDrainsOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w, 16)

	for _, rule := range []string{"A", "B", "C"} {
		p.Listen(alertNote(rule))
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	msgs := w.messages()
	if len(msgs) != 3 {
		t.Fatalf("want 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"A", "B", "C"} {
		if string(msgs[i].Key) != want {
			t.Errorf("message %d: want key %s, got %s", i, want, msgs[i].Key)
		}
	}
	if !w.closed {
		t.Error("writer not closed")
	}
	if s := p.Stats(); s.Sent != 3 || s.Dropped != 0 {
		t.Errorf("stats: got %+v", s)
	}
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	p := NewPublisher(w, 1)

	// The worker blocks in WriteMessages with A; B fills the queue.
	p.Listen(alertNote("A"))
	select {
	case <-w.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never reached the writer")
	}
	p.Listen(alertNote("B"))
	p.Listen(alertNote("C"))

	if got := p.Stats().Dropped; got != 1 {
		t.Errorf("dropped: want 1, got %d", got)
	}

	close(w.block)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(w.messages()); got != 2 {
		t.Errorf("published: want 2, got %d", got)
	}
}

func TestPublisher_WriteFailureCounted(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewPublisher(w, 4)
	p.Listen(alertNote("A"))
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s := p.Stats(); s.Failed != 1 || s.Sent != 0 {
		t.Errorf("stats: got %+v", s)
	}
}

func TestPublisher_ListenAfterCloseIgnored(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w, 4)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	p.Listen(alertNote("A"))
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(w.messages()) != 0 {
		t.Error("nothing should be published after Close")
	}
}

func TestNewWriter_Validates(t *testing.T) {
	if _, err := NewWriter(nil, "topic"); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewWriter([]string{"localhost:9092"}, ""); err == nil {
		t.Error("expected error without topic")
	}
	w, err := NewWriter([]string{"localhost:9092"}, "growwatch")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if w.Topic != "growwatch" {
		t.Errorf("topic: got %s", w.Topic)
	}
}
