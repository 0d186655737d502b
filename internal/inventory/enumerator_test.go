package inventory

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func fixed(label string, entries []SoftwareEntry, err error) Source {
	return SourceFunc{Label: label, Fn: func(context.Context) ([]SoftwareEntry, error) {
		return entries, err
	}}
}

func TestEnumerateMergesSources(t *testing.T) {
	e := NewEnumerator(
		fixed(SourceRegistry, []SoftwareEntry{{Name: "Git", Version: str("2.44"), Source: SourceRegistry}}, nil),
		fixed(SourceWMIC, []SoftwareEntry{{Name: "git", Source: SourceWMIC}, {Name: "Acrobat", Source: SourceWMIC}}, nil),
	)

	got, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Acrobat" || got[1].Source != SourceRegistry {
		t.Fatalf("unexpected merge: %+v", got)
	}
}

func TestEnumeratePartialFailure(t *testing.T) {
	e := NewEnumerator(
		fixed(SourceRegistry, []SoftwareEntry{{Name: "Git"}}, nil),
		fixed(SourceWMIC, nil, errors.New("wmic product query timed out")),
	)

	got, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("one failing source should not fail the scan: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
}

func TestEnumerateAllSourcesFail(t *testing.T) {
	e := NewEnumerator(
		fixed(SourceDpkg, nil, exec.ErrNotFound),
		fixed(SourceRPM, nil, errors.New("rpmdb locked")),
	)

	_, err := e.Enumerate(context.Background())
	var enumErr *EnumerationError
	if !errors.As(err, &enumErr) {
		t.Fatalf("expected EnumerationError, got %v", err)
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("expected wrapped source errors, got %v", err)
	}
}

func TestEnumerateNoSources(t *testing.T) {
	_, err := NewEnumerator().Enumerate(context.Background())
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestEnumerateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEnumerator(fixed(SourceDpkg, nil, nil)).Enumerate(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEnumerateKeepsPriorityWhenPrimaryIsSlow(t *testing.T) {
	slow := SourceFunc{Label: SourceRegistry, Fn: func(context.Context) ([]SoftwareEntry, error) {
		time.Sleep(20 * time.Millisecond)
		return []SoftwareEntry{{Name: "Git", Source: SourceRegistry}}, nil
	}}
	e := NewEnumerator(slow, fixed(SourceWMIC, []SoftwareEntry{{Name: "GIT", Source: SourceWMIC}}, nil))

	got, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(got) != 1 || got[0].Source != SourceRegistry {
		t.Fatalf("registry entry should win, got %+v", got)
	}
}
