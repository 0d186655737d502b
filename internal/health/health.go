// Package health tracks the latest outcome of each agent component so the
// status surface can report a single overall state.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/breeze-rmm/inventory-agent/internal/logging"
)

var log = logging.L("health")

type Status string

const (
	Unknown   Status = "unknown"
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
)

// Check is the latest result recorded for one component.
type Check struct {
	Name      string    `json:"name" yaml:"name"`
	Status    Status    `json:"status" yaml:"status"`
	Message   string    `json:"message,omitempty" yaml:"message,omitempty"`
	Failures  int       `json:"consecutive_failures" yaml:"consecutive_failures"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Monitor records per-component checks. A component that fails
// repeatedly degrades and then turns unhealthy.
type Monitor struct {
	mu        sync.RWMutex
	checks    map[string]Check
	threshold int
}

// NewMonitor returns a Monitor that marks a component unhealthy after
// three consecutive failures.
func NewMonitor() *Monitor {
	return &Monitor{checks: make(map[string]Check), threshold: 3}
}

// Update records an explicit status for name.
func (m *Monitor) Update(name string, status Status, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.checks[name]
	c := Check{Name: name, Status: status, Message: message, UpdatedAt: time.Now()}
	if status != Healthy {
		c.Failures = prev.Failures + 1
	}
	m.checks[name] = c

	if status != Healthy && prev.Status != status {
		log.Warn("component health changed", "target", name, "status", string(status), "message", message)
	}
}

// Success marks name healthy and resets its failure streak.
func (m *Monitor) Success(name string) {
	m.Update(name, Healthy, "")
}

// Failure records a failed run of name. The first failures degrade the
// component; reaching the threshold makes it unhealthy.
func (m *Monitor) Failure(name string, err error) {
	m.mu.RLock()
	failures := m.checks[name].Failures + 1
	m.mu.RUnlock()

	status := Degraded
	if failures >= m.threshold {
		status = Unhealthy
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	m.Update(name, status, msg)
}

func (m *Monitor) Get(name string) (Check, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.checks[name]
	return c, ok
}

// Overall is the worst status across all checks, or Unknown when nothing
// has reported yet.
func (m *Monitor) Overall() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.checks) == 0 {
		return Unknown
	}
	worst := Healthy
	for _, c := range m.checks {
		if rank(c.Status) > rank(worst) {
			worst = c.Status
		}
	}
	return worst
}

// All returns every check sorted by name.
func (m *Monitor) All() []Check {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Check, 0, len(m.checks))
	for _, c := range m.checks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Summary is a compact view for status output.
type Summary struct {
	Status     Status            `json:"status" yaml:"status"`
	Components map[string]Status `json:"components" yaml:"components"`
}

func (m *Monitor) Summary() Summary {
	checks := m.All()
	s := Summary{Status: m.Overall(), Components: make(map[string]Status, len(checks))}
	for _, c := range checks {
		s.Components[c.Name] = c.Status
	}
	return s
}

func rank(s Status) int {
	switch s {
	case Healthy:
		return 0
	case Degraded:
		return 1
	case Unhealthy:
		return 2
	default:
		return 3
	}
}
