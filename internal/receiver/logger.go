package receiver

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nixlim/growwatch/internal/sensor"
)

// ReadingLogger records every reading the receiver is handed.
// Implementations must be safe for concurrent use.
type ReadingLogger interface {
	LogReading(remote string, reading sensor.SensorValue, accepted bool)
}

// NopLogger discards everything. It is the default.
type NopLogger struct{}

func (NopLogger) LogReading(string, sensor.SensorValue, bool) {}

type logEntry struct {
	Received  string  `json:"ts"`
	Remote    string  `json:"remote,omitempty"`
	Timestamp string  `json:"reading_ts"`
	Dimension string  `json:"dimension"`
	Value     float64 `json:"value"`
	Accepted  bool    `json:"accepted"`
}

// FileLogger writes one JSON object per line.
type FileLogger struct {
	w   io.Writer
	mu  sync.Mutex
	now func() time.Time
}

func NewFileLogger(w io.Writer) *FileLogger {
	return &FileLogger{w: w, now: time.Now}
}

func (l *FileLogger) LogReading(remote string, r sensor.SensorValue, accepted bool) {
	entry := logEntry{
		Received:  l.now().UTC().Format(time.RFC3339Nano),
		Remote:    remote,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
		Dimension: string(r.Dimension),
		Value:     r.Value,
		Accepted:  accepted,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s\n", data)
}
