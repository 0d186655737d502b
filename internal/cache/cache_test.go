package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/breeze-rmm/inventory-agent/internal/inventory"
)

func report(names ...string) *inventory.Report {
	entries := make([]inventory.SoftwareEntry, len(names))
	for i, n := range names {
		entries[i] = inventory.SoftwareEntry{Name: n, Source: inventory.SourceDpkg}
	}
	return inventory.NewReport(nil, time.Now(), entries)
}

func TestGetCoalescesConcurrentLoads(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := New(func(context.Context) (*inventory.Report, error) {
		calls.Add(1)
		<-release
		return report("git", "curl"), nil
	})

	const callers = 16
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		results [callers]*inventory.Report
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			r, err := c.Get(context.Background())
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			results[i] = r
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
	for i, r := range results {
		if r != results[0] {
			t.Fatalf("caller %d got a different report", i)
		}
	}
}

func TestGetIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	c := New(func(context.Context) (*inventory.Report, error) {
		calls.Add(1)
		return report("git"), nil
	})

	first, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("expected the same report instance")
	}
	if calls.Load() != 1 {
		t.Fatalf("loader called %d times, want 1", calls.Load())
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 1 || s.Loads != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestSetAndClear(t *testing.T) {
	var calls atomic.Int32
	c := New(func(context.Context) (*inventory.Report, error) {
		calls.Add(1)
		return report("fresh"), nil
	})

	preset := report("preset")
	c.Set(preset)
	got, _ := c.Get(context.Background())
	if got != preset {
		t.Fatal("Get should return the report passed to Set")
	}

	c.Clear()
	if _, ok := c.Peek(); ok {
		t.Fatal("cache should be empty after Clear")
	}
	got, _ = c.Get(context.Background())
	if got.SoftwareList[0].Name != "fresh" || calls.Load() != 1 {
		t.Fatalf("expected a fresh load after Clear, got %+v", got.SoftwareList)
	}
}

func TestLoadDoesNotReplaceNewerReport(t *testing.T) {
	var c *ReportCache
	newer := report("newer")
	c = New(func(context.Context) (*inventory.Report, error) {
		// A direct Set lands while this load is still in flight.
		c.Set(newer)
		return report("older"), nil
	})

	got, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.SoftwareList[0].Name != "older" {
		t.Fatalf("Get should return the loaded report, got %q", got.SoftwareList[0].Name)
	}
	cached, ok := c.Peek()
	if !ok || cached != newer {
		t.Fatal("load replaced a report stored after it started")
	}
	if s := c.Stats(); s.Sets != 1 {
		t.Fatalf("Sets = %d, want 1", s.Sets)
	}
}

func TestGetLoadErrorLeavesCacheEmpty(t *testing.T) {
	boom := errors.New("enumeration failed")
	fail := true
	c := New(func(context.Context) (*inventory.Report, error) {
		if fail {
			return nil, boom
		}
		return report("ok"), nil
	})

	if _, err := c.Get(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if _, ok := c.Peek(); ok {
		t.Fatal("failed load must not populate the cache")
	}

	fail = false
	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
}

func TestGetCallerContextEnds(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := New(func(context.Context) (*inventory.Report, error) {
		<-release
		return report("slow"), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFindByNameAndNames(t *testing.T) {
	c := New(func(context.Context) (*inventory.Report, error) {
		return report("Google Chrome", "Git", "curl"), nil
	})

	if got := c.FindByName(context.Background(), "G"); len(got) != 2 {
		t.Fatalf("FindByName(G) = %+v", got)
	}
	if got := c.FindByName(context.Background(), "zzz"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %#v", got)
	}
	names := c.Names(context.Background())
	if len(names) != 3 || names[0] != "curl" {
		t.Fatalf("Names() = %v", names)
	}
}

func TestFindByNameOnLoadFailure(t *testing.T) {
	c := New(func(context.Context) (*inventory.Report, error) {
		return nil, errors.New("no sources")
	})
	got := c.FindByName(context.Background(), "git")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
	if names := c.Names(context.Background()); len(names) != 0 {
		t.Fatalf("expected no names, got %v", names)
	}
}
