package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/breeze-rmm/inventory-agent/internal/facts"
	"github.com/breeze-rmm/inventory-agent/internal/inventory"
	"github.com/breeze-rmm/inventory-agent/internal/logging"
	"github.com/breeze-rmm/inventory-agent/pkg/api"
)

// runScan enumerates software, attaches host facts and replaces the cached
// report. Scans never overlap. On failure the cache and scan counters are
// left as they were.
func (a *Agent) runScan(ctx context.Context) (*inventory.Report, error) {
	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	a.emit("OnScanStart", func(h Hooks) {
		if h.OnScanStart != nil {
			h.OnScanStart()
		}
	})

	start := time.Now()
	entries, hostFacts, err := a.gather(ctx)
	if err != nil {
		a.fail(componentScan, err)
		return nil, err
	}

	report := inventory.NewReport(hostFacts, a.clock.Now().UTC(), entries)

	// The cache and the counters change together so a status snapshot
	// never pairs the new report with the old scan count.
	a.mu.Lock()
	a.cache.Set(report)
	a.lastScanAt = a.clock.Now()
	a.scanCount++
	count := a.scanCount
	a.mu.Unlock()
	a.health.Success(componentScan)

	log.Info("scan complete",
		"items", report.SoftwareCount,
		logging.KeyScanCount, count,
		logging.KeyDurationMs, time.Since(start).Milliseconds(),
	)

	a.emit("OnScanComplete", func(h Hooks) {
		if h.OnScanComplete != nil {
			h.OnScanComplete(report)
		}
	})
	return report, nil
}

type gathered struct {
	entries []inventory.SoftwareEntry
	facts   *facts.Bundle
	err     error
}

// gather enumerates software and collects host facts within the scan
// timeout. It returns at the deadline even if a source ignores its context;
// that source's goroutine is left to finish on its own.
func (a *Agent) gather(ctx context.Context) ([]inventory.SoftwareEntry, *facts.Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, a.scanTimeout)
	defer cancel()

	done := make(chan gathered, 1)
	go func() {
		var g gathered
		defer func() {
			if r := recover(); r != nil {
				g = gathered{err: &inventory.EnumerationError{Op: "enumerate", Err: fmt.Errorf("panic: %v", r)}}
			}
			done <- g
		}()

		entries, err := a.enum.Enumerate(ctx)
		if err != nil {
			var enumErr *inventory.EnumerationError
			if !errors.As(err, &enumErr) {
				err = &inventory.EnumerationError{Op: "enumerate", Err: err}
			}
			g.err = err
			return
		}
		bundle, err := a.facts.Collect(ctx)
		if err != nil {
			g.err = &inventory.EnumerationError{Op: "facts", Err: err}
			return
		}
		g.entries, g.facts = entries, bundle
	}()

	select {
	case g := <-done:
		if g.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, &inventory.EnumerationError{Op: "enumerate", Err: context.DeadlineExceeded}
		}
		return g.entries, g.facts, g.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("scan timed out", "timeout", a.scanTimeout)
		}
		return nil, nil, &inventory.EnumerationError{Op: "enumerate", Err: ctx.Err()}
	}
}

// runSend delivers the cached report, scanning first if the cache is
// empty. Only an acknowledged delivery advances the send counters; there is
// no retry within a cycle.
func (a *Agent) runSend(ctx context.Context) (*api.Ack, error) {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	a.emit("OnSendStart", func(h Hooks) {
		if h.OnSendStart != nil {
			h.OnSendStart()
		}
	})

	report, err := a.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	baseURL := a.store.Get().CollectorURL()
	start := time.Now()
	ack, err := a.newDeliverer(baseURL).SendReport(ctx, report)
	if err != nil {
		var de *api.DeliveryError
		if !errors.As(err, &de) {
			err = &api.DeliveryError{Op: "send", Err: err}
		}
		a.fail(componentDelivery, err)
		return nil, err
	}

	a.mu.Lock()
	a.lastSendAt = a.clock.Now()
	a.sendCount++
	count := a.sendCount
	a.mu.Unlock()
	a.health.Success(componentDelivery)

	log.Info("report delivered",
		logging.KeyCollector, baseURL,
		logging.KeyRequestID, ack.RequestID,
		"items", report.SoftwareCount,
		logging.KeySendCount, count,
		logging.KeyDurationMs, time.Since(start).Milliseconds(),
	)

	a.emit("OnSendComplete", func(h Hooks) {
		if h.OnSendComplete != nil {
			h.OnSendComplete(ack)
		}
	})
	return ack, nil
}

func (a *Agent) fail(component string, err error) {
	a.setLastError(err)
	a.health.Failure(component, err)
	log.Warn(component+" cycle failed", logging.KeyError, err)
}

// ForceScan runs a scan now, regardless of the scan interval. If a scan is
// already running it waits for it and then scans again.
func (a *Agent) ForceScan(ctx context.Context) (*inventory.Report, error) {
	return a.runScan(ctx)
}

// ForceSend delivers the current report now, regardless of the send
// interval.
func (a *Agent) ForceSend(ctx context.Context) (*api.Ack, error) {
	return a.runSend(ctx)
}

// GetData returns the cached report, scanning if there is none.
func (a *Agent) GetData(ctx context.Context) (*inventory.Report, error) {
	a.emit("OnDataRequest", func(h Hooks) {
		if h.OnDataRequest != nil {
			h.OnDataRequest()
		}
	})
	return a.cache.Get(ctx)
}

// FindSoftware matches pattern case-insensitively against software names.
func (a *Agent) FindSoftware(ctx context.Context, pattern string) []inventory.SoftwareEntry {
	return a.cache.FindByName(ctx, pattern)
}

// SoftwareNames lists the names in the current report.
func (a *Agent) SoftwareNames(ctx context.Context) []string {
	return a.cache.Names(ctx)
}

// ClearCache drops the cached report; the next read or delivery scans.
func (a *Agent) ClearCache() {
	a.cache.Clear()
}

func (a *Agent) SetScanInterval(seconds int) error {
	return a.store.SetScanInterval(seconds)
}

func (a *Agent) SetSendInterval(seconds int) error {
	return a.store.SetSendInterval(seconds)
}
