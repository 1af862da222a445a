// Package sink publishes engine notifications to Kafka. Publishing happens
// on a background goroutine fed by a bounded queue, so a slow or absent
// broker never stalls the engine.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/nixlim/growwatch/internal/alerts"
	"github.com/nixlim/growwatch/internal/logger"
	"github.com/nixlim/growwatch/internal/metrics"
)

const (
	maxBatch     = 64
	writeTimeout = 10 * time.Second
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter builds a synchronous, key-hashed Kafka writer.
func NewWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	}, nil
}

// Publisher forwards notifications to a MessageWriter.
type Publisher struct {
	writer MessageWriter
	log    zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan alerts.Notification
	done   chan struct{}

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewPublisher starts a publisher with room for queueSize pending
// notifications.
func NewPublisher(w MessageWriter, queueSize int) *Publisher {
	if queueSize < 1 {
		queueSize = 1
	}
	p := &Publisher{
		writer: w,
		log:    logger.WithComponent("sink"),
		queue:  make(chan alerts.Notification, queueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Listen enqueues n without blocking. When the queue is full the
// notification is dropped and counted.
func (p *Publisher) Listen(n alerts.Notification) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	select {
	case p.queue <- n:
	default:
		p.dropped.Add(1)
		metrics.SinkPublishTotal.WithLabelValues("dropped").Inc()
		p.log.Warn().Str("kind", string(n.Kind)).Msg("sink queue full, notification dropped")
	}
}

func (p *Publisher) run() {
	defer close(p.done)

	batch := make([]kafka.Message, 0, maxBatch)
	for n := range p.queue {
		batch = append(batch[:0], p.encode(n)...)
	fill:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-p.queue:
				if !ok {
					break fill
				}
				batch = append(batch, p.encode(next)...)
			default:
				break fill
			}
		}
		p.write(batch)
	}
}

// encode returns zero or one message.
func (p *Publisher) encode(n alerts.Notification) []kafka.Message {
	msg, err := Message(n)
	if err != nil {
		p.failed.Add(1)
		metrics.SinkPublishTotal.WithLabelValues("failed").Inc()
		p.log.Error().Err(err).Msg("failed to encode notification")
		return nil
	}
	return []kafka.Message{msg}
}

func (p *Publisher) write(batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		p.failed.Add(uint64(len(batch)))
		metrics.SinkPublishTotal.WithLabelValues("failed").Add(float64(len(batch)))
		p.log.Error().Err(err).Int("batch_size", len(batch)).Msg("kafka publish failed")
		return
	}

	p.sent.Add(uint64(len(batch)))
	metrics.SinkPublishTotal.WithLabelValues("success").Add(float64(len(batch)))
	p.log.Debug().Int("batch_size", len(batch)).Msg("notifications published")
}

// Close stops accepting notifications, publishes what is queued and closes
// the writer. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}

// Stats holds publisher counters.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Dropped uint64
}

func (p *Publisher) Stats() Stats {
	return Stats{
		Sent:    p.sent.Load(),
		Failed:  p.failed.Load(),
		Dropped: p.dropped.Load(),
	}
}

// Message encodes n as a Kafka message keyed by rule name. Anomalies are
// keyed by the dimension of the offending reading.
func Message(n alerts.Notification) (kafka.Message, error) {
	value, err := json.Marshal(n)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshalling notification: %w", err)
	}

	key := n.Alert.Rule
	if n.Kind == alerts.KindAnomaly && n.Anomaly != nil {
		key = "anomaly/" + string(n.Anomaly.Reading.Dimension)
	}

	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(n.Kind)},
			{Key: "rule", Value: []byte(n.Alert.Rule)},
		},
		Time: n.Timestamp(),
	}, nil
}
