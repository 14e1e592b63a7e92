package session

import (
	"encoding/json"
	"time"
)

// ReportStatus is the lifecycle position of a secondary report
type ReportStatus string

const (
	StatusNotStarted ReportStatus = "not_started"
	StatusLoading    ReportStatus = "loading"
	StatusLoaded     ReportStatus = "loaded"
	StatusFailed     ReportStatus = "failed"
)

// Report is a tagged variant over NotStarted, Loading, Loaded(T) and Failed(reason).
// The zero value is NotStarted. Fields are unexported so a report can never be
// loaded and loading at the same time.
type Report[T any] struct {
	status    ReportStatus
	value     *T
	reason    string
	epoch     uint64
	startedAt time.Time
	settledAt time.Time
	attempts  int
}

func (r Report[T]) Status() ReportStatus {
	if r.status == "" {
		return StatusNotStarted
	}
	return r.status
}

// Value returns the loaded value. ok is false unless the report is Loaded.
func (r Report[T]) Value() (value *T, ok bool) {
	if r.Status() != StatusLoaded {
		return nil, false
	}
	return r.value, true
}

// Reason returns the failure notice ID of a Failed report
func (r Report[T]) Reason() string {
	if r.Status() != StatusFailed {
		return ""
	}
	return r.reason
}

// Busy reports whether a request is in flight
func (r Report[T]) Busy() bool { return r.Status() == StatusLoading }

// Attempts counts how many requests were issued
func (r Report[T]) Attempts() int { return r.attempts }

// Epoch identifies the analysis the in-flight or loaded request belongs to
func (r Report[T]) Epoch() uint64 { return r.epoch }

func (r Report[T]) begin(epoch uint64, now time.Time) Report[T] {
	return Report[T]{status: StatusLoading, epoch: epoch, startedAt: now, attempts: r.attempts + 1}
}

func (r Report[T]) succeed(value *T, now time.Time) Report[T] {
	return Report[T]{status: StatusLoaded, value: value, epoch: r.epoch, startedAt: r.startedAt, settledAt: now, attempts: r.attempts}
}

func (r Report[T]) fail(reason string, now time.Time) Report[T] {
	return Report[T]{status: StatusFailed, reason: reason, epoch: r.epoch, startedAt: r.startedAt, settledAt: now, attempts: r.attempts}
}

type reportJSON[T any] struct {
	Status    ReportStatus `json:"status"`
	Value     *T           `json:"value,omitempty"`
	Error     string       `json:"error,omitempty"`
	Attempts  int          `json:"attempts"`
	StartedAt *time.Time   `json:"startedAt,omitempty"`
	SettledAt *time.Time   `json:"settledAt,omitempty"`
}

func (r Report[T]) MarshalJSON() ([]byte, error) {
	out := reportJSON[T]{Status: r.Status(), Error: r.Reason(), Attempts: r.attempts}
	out.Value, _ = r.Value()
	if !r.startedAt.IsZero() {
		out.StartedAt = &r.startedAt
	}
	if !r.settledAt.IsZero() {
		out.SettledAt = &r.settledAt
	}
	return json.Marshal(out)
}
