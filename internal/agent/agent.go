// Package agent runs the scan and delivery cycles on their own intervals
// and exposes the status and query surface used by the CLI.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/breeze-rmm/inventory-agent/internal/cache"
	"github.com/breeze-rmm/inventory-agent/internal/clock"
	"github.com/breeze-rmm/inventory-agent/internal/config"
	"github.com/breeze-rmm/inventory-agent/internal/facts"
	"github.com/breeze-rmm/inventory-agent/internal/health"
	"github.com/breeze-rmm/inventory-agent/internal/inventory"
	"github.com/breeze-rmm/inventory-agent/internal/logging"
	"github.com/breeze-rmm/inventory-agent/pkg/api"
)

var log = logging.L("agent")

const (
	tickInterval   = time.Second
	failureBackoff = 10 * time.Second
	stopTimeout    = 5 * time.Second

	// scanTimeout bounds enumeration plus facts gathering for one scan.
	scanTimeout = 5 * time.Minute
)

// Health component names.
const (
	componentScan     = "scan"
	componentDelivery = "delivery"
)

// FactsSource supplies the host facts merged into every report.
type FactsSource interface {
	Collect(ctx context.Context) (*facts.Bundle, error)
}

// Deliverer posts a report to the collector.
type Deliverer interface {
	SendReport(ctx context.Context, report any) (*api.Ack, error)
}

type Agent struct {
	store        *config.Store
	enum         inventory.Enumerator
	facts        FactsSource
	cache        *cache.ReportCache
	clock        clock.Clock
	health       *health.Monitor
	newDeliverer func(baseURL string) Deliverer
	version      string
	scanTimeout  time.Duration

	hooksMu sync.RWMutex
	hooks   Hooks

	scanMu sync.Mutex
	sendMu sync.Mutex

	mu         sync.Mutex
	running    bool
	loopAlive  bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	lastScanAt time.Time
	lastSendAt time.Time
	scanCount  int64
	sendCount  int64
	lastErr    string
}

type Option func(*Agent)

func WithClock(c clock.Clock) Option {
	return func(a *Agent) { a.clock = c }
}

func WithHooks(h Hooks) Option {
	return func(a *Agent) { a.hooks = h }
}

func WithHealth(m *health.Monitor) Option {
	return func(a *Agent) { a.health = m }
}

// WithScanTimeout overrides how long a scan may run before it is abandoned.
func WithScanTimeout(d time.Duration) Option {
	return func(a *Agent) { a.scanTimeout = d }
}

func WithVersion(v string) Option {
	return func(a *Agent) { a.version = v }
}

// WithDeliverer overrides how the collector client is built for each
// delivery. The factory receives the collector base URL from the current
// configuration.
func WithDeliverer(factory func(baseURL string) Deliverer) Option {
	return func(a *Agent) { a.newDeliverer = factory }
}

// New wires an Agent. It does not start the scheduler.
func New(store *config.Store, enum inventory.Enumerator, fs FactsSource, opts ...Option) *Agent {
	a := &Agent{
		store:       store,
		enum:        enum,
		facts:       fs,
		clock:       clock.Real(),
		health:      health.NewMonitor(),
		version:     "dev",
		scanTimeout: scanTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.newDeliverer == nil {
		hc := &http.Client{Timeout: api.SendTimeout}
		ua := "inventory-agent/" + a.version
		a.newDeliverer = func(baseURL string) Deliverer {
			return api.NewClient(baseURL, api.WithHTTPClient(hc), api.WithUserAgent(ua))
		}
	}
	a.cache = cache.New(a.runScan)

	store.OnChange(func(c config.Config) {
		log.Info("configuration updated",
			"collector", c.CollectorURL(),
			"scanIntervalSeconds", c.ScanIntervalSeconds,
			"sendIntervalSeconds", c.SendIntervalSeconds,
		)
	})
	return a
}

// Start launches the scheduler loop and runs one scan before returning. It
// reports false if the agent was already running. The loop's first tick
// waits for that scan, so a successful startup scan also starts the scan
// interval.
func (a *Agent) Start() bool {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return false
	}
	a.running = true
	stop := make(chan struct{})
	done := make(chan struct{})
	a.stopCh, a.doneCh = stop, done
	a.mu.Unlock()

	startup := make(chan struct{})
	go a.loop(stop, done, startup)

	cfg := a.store.Get()
	log.Info("agent started",
		"version", a.version,
		logging.KeyCollector, cfg.CollectorURL(),
		"scanIntervalSeconds", cfg.ScanIntervalSeconds,
		"sendIntervalSeconds", cfg.SendIntervalSeconds,
	)

	if _, err := a.runScan(context.Background()); err != nil {
		log.Warn("startup scan failed, retrying on first tick", logging.KeyError, err)
	}
	close(startup)
	return true
}

// Stop signals the loop and waits up to five seconds for it to exit. A
// cycle that is already running is allowed to finish. It reports false if
// the agent was not running.
func (a *Agent) Stop() bool {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return false
	}
	a.running = false
	stop, done := a.stopCh, a.doneCh
	a.mu.Unlock()

	close(stop)
	select {
	case <-done:
		log.Info("agent stopped")
	case <-time.After(stopTimeout):
		log.Warn("scheduler loop did not exit in time", "timeout", stopTimeout)
	}
	return true
}

func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Agent) loop(stop <-chan struct{}, done chan struct{}, startup <-chan struct{}) {
	defer close(done)
	a.setLoopAlive(true)
	defer a.loopExited(done)

	select {
	case <-startup:
	case <-stop:
		return
	}

	for {
		select {
		case <-stop:
			return
		case <-a.clock.After(tickInterval):
		}

		if err := a.tick(); err != nil {
			log.Info("cycle failed, pausing before next tick", "backoff", failureBackoff, logging.KeyError, err)
			select {
			case <-stop:
				return
			case <-a.clock.After(failureBackoff):
			}
		}
	}
}

func (a *Agent) setLoopAlive(v bool) {
	a.mu.Lock()
	a.loopAlive = v
	a.mu.Unlock()
}

// loopExited clears loopAlive unless a newer loop has been started since
// this one, which happens when Stop timed out and Start ran again.
func (a *Agent) loopExited(done chan struct{}) {
	a.mu.Lock()
	if a.doneCh == done {
		a.loopAlive = false
	}
	a.mu.Unlock()
}

// tick runs whichever cycles are due. Configuration is re-read every tick
// so interval changes apply without a restart.
func (a *Agent) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler tick panicked: %v", r)
			log.Error("recovered panic in scheduler tick",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			a.setLastError(err)
		}
	}()

	cfg := a.store.Get()
	scanDue, sendDue := a.due(a.clock.Now(), cfg)

	ctx := context.Background()
	var errs []error
	if scanDue {
		if _, err := a.runScan(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if sendDue {
		if _, err := a.runSend(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Agent) due(now time.Time, cfg config.Config) (scan, send bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	scanEvery := time.Duration(cfg.ScanIntervalSeconds) * time.Second
	sendEvery := time.Duration(cfg.SendIntervalSeconds) * time.Second
	scan = a.lastScanAt.IsZero() || now.Sub(a.lastScanAt) >= scanEvery
	send = a.lastSendAt.IsZero() || now.Sub(a.lastSendAt) >= sendEvery
	return scan, send
}

func (a *Agent) setLastError(err error) {
	a.mu.Lock()
	a.lastErr = err.Error()
	a.mu.Unlock()
}
