package fallback

import (
	"time"
)

// Attempt records one adapter call made during a run.
type Attempt struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Class    string        `json:"class,omitempty"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency"`
	Terminal bool          `json:"terminal,omitempty"`
	Skipped  bool          `json:"skipped,omitempty"`
}

// Report summarizes a run for logging and display.
type Report struct {
	RunID        string     `json:"run_id"`
	Task         string     `json:"task"`
	Attempts     []Attempt  `json:"attempts"`
	Winner       *Candidate `json:"winner,omitempty"`
	FallbackUsed bool       `json:"fallback_used"`
	Reselections int        `json:"reselections"`
}

func (r *Report) add(a Attempt) {
	r.Attempts = append(r.Attempts, a)
}

func (r *Report) win(c Candidate, fallback bool) {
	r.Winner = &c
	r.FallbackUsed = fallback
}
