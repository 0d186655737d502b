// Package inventory enumerates installed software from the platform's
// package sources and assembles it into reports.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/breeze-rmm/inventory-agent/internal/logging"
)

var log = logging.L("inventory")

// ErrUnsupportedPlatform is returned on hosts with no known package source.
var ErrUnsupportedPlatform = errors.New("no software source for this platform")

// EnumerationError reports that no source could produce a software list.
type EnumerationError struct {
	Op  string
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("inventory %s: %v", e.Op, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// Enumerator produces the merged software list for the host.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]SoftwareEntry, error)
}

// Source is a single place software can be listed from.
type Source interface {
	Name() string
	List(ctx context.Context) ([]SoftwareEntry, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc struct {
	Label string
	Fn    func(ctx context.Context) ([]SoftwareEntry, error)
}

func (s SourceFunc) Name() string { return s.Label }

func (s SourceFunc) List(ctx context.Context) ([]SoftwareEntry, error) { return s.Fn(ctx) }

// MultiEnumerator queries its sources concurrently and merges what they
// return in priority order. It fails only when every source fails.
type MultiEnumerator struct {
	sources []Source
}

func NewEnumerator(sources ...Source) *MultiEnumerator {
	return &MultiEnumerator{sources: sources}
}

// NewPlatformEnumerator uses the sources available on the running OS.
func NewPlatformEnumerator() *MultiEnumerator {
	return NewEnumerator(platformSources()...)
}

func (m *MultiEnumerator) Enumerate(ctx context.Context) ([]SoftwareEntry, error) {
	if len(m.sources) == 0 {
		return nil, &EnumerationError{Op: "enumerate", Err: ErrUnsupportedPlatform}
	}
	if err := ctx.Err(); err != nil {
		return nil, &EnumerationError{Op: "enumerate", Err: err}
	}

	lists := make([][]SoftwareEntry, len(m.sources))
	errs := make([]error, len(m.sources))

	var g errgroup.Group
	for i, src := range m.sources {
		i, src := i, src
		g.Go(func() error {
			start := time.Now()
			list, err := src.List(ctx)
			if err != nil {
				if errors.Is(err, exec.ErrNotFound) {
					log.Debug("software source not present", "source", src.Name())
				} else {
					log.Warn("software source failed", "source", src.Name(), logging.KeyError, err)
				}
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				return nil
			}
			log.Debug("software source listed",
				"source", src.Name(),
				"items", len(list),
				logging.KeyDurationMs, time.Since(start).Milliseconds(),
			)
			lists[i] = list
			return nil
		})
	}
	g.Wait()

	var ok [][]SoftwareEntry
	for i := range m.sources {
		if errs[i] == nil {
			ok = append(ok, lists[i])
		}
	}
	if len(ok) == 0 {
		return nil, &EnumerationError{Op: "enumerate", Err: errors.Join(errs...)}
	}
	return Merge(ok...), nil
}
