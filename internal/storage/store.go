package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixlim/growwatch/internal/alerts"
	"github.com/nixlim/growwatch/internal/logger"
)

const (
	writeChannelSize = 1000
	batchSize        = 50
	flushInterval    = 100 * time.Millisecond
)

type writeOp struct {
	opType  string
	alert   *alertHistoryRow
	anomaly *anomalyRow
}

// SQLiteStore persists notifications through a buffered write-behind
// channel. Record never blocks the engine; when the channel is full the
// write is dropped and counted.
type SQLiteStore struct {
	db              *sql.DB
	writeChan       chan writeOp
	droppedWrites   atomic.Int64
	doneChan        chan struct{}
	closed          atomic.Bool
	cancelMaint     context.CancelFunc
	maintenanceDone chan struct{}
	log             zerolog.Logger
	now             func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string, retentionDays, summaryRetentionDays int) (*SQLiteStore, error) {
	return newSQLiteStoreWithChannelSize(dbPath, writeChannelSize, retentionDays, summaryRetentionDays)
}

func newSQLiteStoreWithChannelSize(dbPath string, chanSize int, retentionDays, summaryRetentionDays int) (*SQLiteStore, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	store := &SQLiteStore{
		db:              db,
		writeChan:       make(chan writeOp, chanSize),
		doneChan:        make(chan struct{}),
		cancelMaint:     cancel,
		maintenanceDone: make(chan struct{}),
		log:             logger.WithComponent("storage"),
		now:             time.Now,
	}

	go store.writerLoop()
	store.startMaintenance(ctx, retentionDays, summaryRetentionDays)

	return store, nil
}

// Record implements alerts.Persister.
func (s *SQLiteStore) Record(n alerts.Notification) {
	recordedAt := formatTime(s.now())

	switch n.Kind {
	case alerts.KindAlert:
		a := n.Alert
		s.sendWrite(writeOp{opType: "alertHistory", alert: &alertHistoryRow{
			AlertID:        a.ID,
			Rule:           a.Rule,
			StartedAt:      formatTime(a.StartedAt),
			FinishedAt:     formatTime(a.FinishedAt),
			ElapsedSeconds: a.Elapsed().Seconds(),
			RecordedAt:     recordedAt,
		}})
	case alerts.KindAnomaly:
		if n.Anomaly == nil {
			return
		}
		s.sendWrite(writeOp{opType: "anomaly", anomaly: &anomalyRow{
			Dimension:  string(n.Anomaly.Reading.Dimension),
			Value:      n.Anomaly.Reading.Value,
			ReadingAt:  formatTime(n.Anomaly.Reading.Timestamp),
			CurrentAt:  formatTime(n.Anomaly.Current),
			RecordedAt: recordedAt,
		}})
	}
}

func (s *SQLiteStore) sendWrite(op writeOp) {
	if s.closed.Load() {
		return
	}
	defer func() { _ = recover() }()
	select {
	case s.writeChan <- op:
	default:
		s.droppedWrites.Add(1)
		s.log.Warn().Str("type", op.opType).Msg("write channel full, dropped write")
	}
}

func (s *SQLiteStore) DroppedWrites() int64 {
	return s.droppedWrites.Load()
}

// Close stops maintenance, drains pending writes and closes the database.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.cancelMaint()
	select {
	case <-s.maintenanceDone:
	case <-time.After(30 * time.Second):
		s.log.Warn().Msg("maintenance goroutine did not stop within 30s")
	}

	close(s.writeChan)

	select {
	case <-s.doneChan:
	case <-time.After(10 * time.Second):
		s.log.Error().Msg("failed to drain writes within 10s, data may be lost")
	}

	return s.db.Close()
}

func (s *SQLiteStore) writerLoop() {
	defer close(s.doneChan)

	batch := make([]writeOp, 0, batchSize)
	flushTimer := time.NewTimer(flushInterval)
	defer flushTimer.Stop()

	for {
		select {
		case op, ok := <-s.writeChan:
			if !ok {
				if len(batch) > 0 {
					s.flushBatch(batch)
				}
				return
			}

			batch = append(batch, op)

			if len(batch) >= batchSize {
				s.flushBatch(batch)
				batch = batch[:0]
				flushTimer.Reset(flushInterval)
			}

		case <-flushTimer.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
			flushTimer.Reset(flushInterval)
		}
	}
}

func (s *SQLiteStore) flushBatch(batch []writeOp) {
	tx, err := s.db.Begin()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to begin transaction")
		return
	}
	defer func() { _ = tx.Rollback() }()

	for _, op := range batch {
		if err := s.executeOp(tx, op); err != nil {
			s.log.Error().Err(err).Str("type", op.opType).Msg("failed to execute write op")
		}
	}

	if err := tx.Commit(); err != nil {
		s.log.Error().Err(err).Msg("failed to commit transaction")
	}
}

func (s *SQLiteStore) executeOp(tx *sql.Tx, op writeOp) error {
	switch op.opType {
	case "alertHistory":
		return s.writeAlertHistory(tx, op.alert)
	case "anomaly":
		return s.writeAnomaly(tx, op.anomaly)
	default:
		return fmt.Errorf("unknown op type: %s", op.opType)
	}
}
