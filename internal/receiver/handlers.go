package receiver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/nixlim/growwatch/internal/events"
	"github.com/nixlim/growwatch/internal/sensor"
	"github.com/nixlim/growwatch/internal/storage"
	"github.com/nixlim/growwatch/internal/supervisor"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 1000
)

type readingsResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

type statusResponse struct {
	supervisor.Snapshot
	Stats         supervisor.Stats `json:"stats"`
	Rejected      uint64           `json:"rejected_readings"`
	DroppedWrites int64            `json:"dropped_writes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleReadings accepts a single reading or a JSON array of readings and
// pushes them in body order.
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := decodeReadings(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var resp readingsResponse
	for _, reading := range readings {
		if d, err := sensor.ParseDimension(string(reading.Dimension)); err == nil {
			reading.Dimension = d
		}
		ok := s.ingestor.Push(reading)
		s.readings.LogReading(r.RemoteAddr, reading, ok)
		if ok {
			resp.Accepted++
		} else {
			resp.Rejected++
		}
	}

	s.log.Debug().
		Int("accepted", resp.Accepted).
		Int("rejected", resp.Rejected).
		Msg("readings received")

	status := http.StatusOK
	if resp.Accepted == 0 && resp.Rejected > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func decodeReadings(body io.Reader) ([]sensor.SensorValue, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}

	if data[0] == '[' {
		var readings []sensor.SensorValue
		if err := json.Unmarshal(data, &readings); err != nil {
			return nil, fmt.Errorf("decoding readings: %w", err)
		}
		return readings, nil
	}

	var reading sensor.SensorValue
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil, fmt.Errorf("decoding reading: %w", err)
	}
	return []sensor.SensorValue{reading}, nil
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultAlertLimit)
	if err != nil || limit < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
		return
	}
	limit = min(limit, maxAlertLimit)

	entries := s.feed.Recent(limit)
	if entries == nil {
		entries = []events.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Snapshot: s.engine.Snapshot(),
		Stats:    s.engine.Stats(),
		Rejected: s.ingestor.Rejected(),
	}
	if s.history != nil {
		resp.DroppedWrites = s.history.DroppedWrites()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 0)
	if err != nil || days < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "days must be a non-negative integer"})
		return
	}

	records := s.history.QueryAlertHistory(days, r.URL.Query().Get("rule"))
	if records == nil {
		records = []storage.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 0)
	if err != nil || days < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "days must be a non-negative integer"})
		return
	}

	summaries := s.history.QueryDailySummaries(days)
	if summaries == nil {
		summaries = []storage.DailySummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
