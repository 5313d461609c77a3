package output

import (
	"time"

	"github.com/jarlhq/jarl/internal/window"
)

// Report is the result of replaying arrivals through a fresh window.
type Report struct {
	Service          string  `json:"service,omitempty" yaml:"service,omitempty"`
	Requests         int     `json:"requests" yaml:"requests"`
	PeriodSeconds    float64 `json:"period_seconds" yaml:"period_seconds"`
	BaseDelaySeconds float64 `json:"base_delay_seconds" yaml:"base_delay_seconds"`
	Decisions        []Row   `json:"decisions" yaml:"decisions"`
	Summary          Summary `json:"summary" yaml:"summary"`
}

// Row is one simulated arrival.
type Row struct {
	Seq            uint64  `json:"seq" yaml:"seq"`
	ArrivalSeconds float64 `json:"arrival_seconds" yaml:"arrival_seconds"`
	Delay          string  `json:"delay" yaml:"delay"`
	Delayed        bool    `json:"delayed" yaml:"delayed"`
	Overflow       int     `json:"overflow" yaml:"overflow"`
	WindowLen      int     `json:"window_len" yaml:"window_len"`
}

// Summary aggregates a report.
type Summary struct {
	Total         int    `json:"total" yaml:"total"`
	Immediate     int    `json:"immediate" yaml:"immediate"`
	Delayed       int    `json:"delayed" yaml:"delayed"`
	MaxDelay      string `json:"max_delay" yaml:"max_delay"`
	FinalOverflow int    `json:"final_overflow" yaml:"final_overflow"`
}

// NewReport pairs each arrival offset with the decision it produced.
func NewReport(service string, snap window.Snapshot, arrivals []time.Duration, decisions []window.Decision) *Report {
	r := &Report{
		Service:          service,
		Requests:         snap.Limit,
		PeriodSeconds:    snap.Period.Seconds(),
		BaseDelaySeconds: snap.BaseDelay.Seconds(),
		Decisions:        make([]Row, 0, len(decisions)),
	}

	var maxDelay time.Duration
	for i, d := range decisions {
		row := Row{
			Seq:       d.Seq,
			Delay:     d.String(),
			Delayed:   d.Delayed(),
			Overflow:  d.Overflow,
			WindowLen: d.WindowLen,
		}
		if i < len(arrivals) {
			row.ArrivalSeconds = arrivals[i].Seconds()
		}
		r.Decisions = append(r.Decisions, row)

		if d.Delayed() {
			r.Summary.Delayed++
		} else {
			r.Summary.Immediate++
		}
		if d.Delay > maxDelay {
			maxDelay = d.Delay
		}
	}

	r.Summary.Total = len(decisions)
	r.Summary.MaxDelay = window.FormatDelay(maxDelay)
	r.Summary.FinalOverflow = snap.Overflow
	return r
}
