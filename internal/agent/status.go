package agent

import (
	"time"

	"github.com/breeze-rmm/inventory-agent/internal/health"
)

// Status is a point-in-time copy of the scheduler state.
type Status struct {
	Running             bool           `json:"running" yaml:"running"`
	LoopAlive           bool           `json:"loop_alive" yaml:"loop_alive"`
	LastScanAt          *time.Time     `json:"last_scan_at" yaml:"last_scan_at"`
	ScanCount           int64          `json:"scan_count" yaml:"scan_count"`
	LastSendAt          *time.Time     `json:"last_send_at" yaml:"last_send_at"`
	SendCount           int64          `json:"send_count" yaml:"send_count"`
	ScanIntervalSeconds int            `json:"scan_interval_seconds" yaml:"scan_interval_seconds"`
	SendIntervalSeconds int            `json:"send_interval_seconds" yaml:"send_interval_seconds"`
	Collector           string         `json:"collector" yaml:"collector"`
	// CachedItems is nil when no report is cached, including after
	// ClearCache, even if ScanCount is non-zero.
	CachedItems         *int           `json:"cached_items" yaml:"cached_items"`
	LastError           string         `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Health              health.Summary `json:"health" yaml:"health"`
}

func (a *Agent) Status() Status {
	cfg := a.store.Get()

	a.mu.Lock()
	st := Status{
		Running:             a.running,
		LoopAlive:           a.loopAlive,
		LastScanAt:          timePtr(a.lastScanAt),
		ScanCount:           a.scanCount,
		LastSendAt:          timePtr(a.lastSendAt),
		SendCount:           a.sendCount,
		ScanIntervalSeconds: cfg.ScanIntervalSeconds,
		SendIntervalSeconds: cfg.SendIntervalSeconds,
		Collector:           cfg.CollectorURL(),
		LastError:           a.lastErr,
	}
	if r, ok := a.cache.Peek(); ok {
		n := r.SoftwareCount
		st.CachedItems = &n
	}
	a.mu.Unlock()

	st.Health = a.health.Summary()
	return st
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
