package handlers

import (
	"net/http"
	"time"

	"github.com/jarlhq/jarl/internal/window"
)

// SnapshotSource exposes read-only window state.
type SnapshotSource interface {
	Snapshot() window.Snapshot
}

// StatusResponse is the JSON view of the sliding window.
type StatusResponse struct {
	Service          string     `json:"service"`
	Limit            int        `json:"requests"`
	PeriodSeconds    float64    `json:"period_seconds"`
	BaseDelaySeconds float64    `json:"base_delay_seconds"`
	WindowLen        int        `json:"window_len"`
	Overflow         int        `json:"overflow"`
	Decisions        uint64     `json:"decisions_total"`
	Delayed          uint64     `json:"delayed_total"`
	Oldest           *time.Time `json:"oldest,omitempty"`
	Newest           *time.Time `json:"newest,omitempty"`
}

// NewStatusResponse converts a snapshot for rendering.
func NewStatusResponse(service string, s window.Snapshot) StatusResponse {
	resp := StatusResponse{
		Service:          service,
		Limit:            s.Limit,
		PeriodSeconds:    s.Period.Seconds(),
		BaseDelaySeconds: s.BaseDelay.Seconds(),
		WindowLen:        s.WindowLen,
		Overflow:         s.Overflow,
		Decisions:        s.Decisions,
		Delayed:          s.Delayed,
	}
	if !s.Oldest.IsZero() {
		oldest := s.Oldest.UTC()
		resp.Oldest = &oldest
	}
	if !s.Newest.IsZero() {
		newest := s.Newest.UTC()
		resp.Newest = &newest
	}
	return resp
}

// StatusHandler serves the current window state. It never records an arrival.
func StatusHandler(service string, source SnapshotSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, NewStatusResponse(service, source.Snapshot()))
	}
}
