package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreRejectsOutOfRangePort(t *testing.T) {
	s := NewStore(Default(), "")

	err := s.SetCollectorPort(70000)
	if err == nil {
		t.Fatal("expected error for port 70000")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != KeyCollectorPort {
		t.Fatalf("expected ValidationError for %s, got %v", KeyCollectorPort, err)
	}
	if got := s.Get().CollectorPort; got != 8080 {
		t.Fatalf("port changed to %d after rejected update", got)
	}
}

func TestStoreSetters(t *testing.T) {
	s := NewStore(Default(), "")

	tests := []struct {
		name    string
		apply   func() error
		wantErr bool
	}{
		{"ipv4", func() error { return s.SetCollectorAddress("10.0.0.7") }, false},
		{"ipv6", func() error { return s.SetCollectorAddress("::1") }, true},
		{"hostname", func() error { return s.SetCollectorAddress("collector") }, true},
		{"port zero", func() error { return s.SetCollectorPort(0) }, false},
		{"port max", func() error { return s.SetCollectorPort(65535) }, false},
		{"negative scan", func() error { return s.SetScanInterval(-5) }, true},
		{"zero send", func() error { return s.SetSendInterval(0) }, false},
	}
	for _, tt := range tests {
		err := tt.apply()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}

	got := s.Get()
	if got.CollectorAddress != "10.0.0.7" || got.CollectorPort != 65535 || got.SendIntervalSeconds != 0 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if got.ScanIntervalSeconds != 3600 {
		t.Fatalf("rejected scan interval applied: %d", got.ScanIntervalSeconds)
	}
}

func TestStoreUpdateIsAllOrNothing(t *testing.T) {
	s := NewStore(Default(), "")

	err := s.Update(map[string]any{
		KeyCollectorAddress: "10.0.0.9",
		KeyCollectorPort:    "8081",
		KeyScanInterval:     120,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := s.Get(); got != *Default() {
		t.Fatalf("partial update applied: %+v", got)
	}

	if err := s.Update(map[string]any{KeyCollectorAddress: "10.0.0.9", KeyScanInterval: 120}); err != nil {
		t.Fatalf("valid update: %v", err)
	}
	if got := s.Get(); got.CollectorAddress != "10.0.0.9" || got.ScanIntervalSeconds != 120 {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestStoreUpdateUnknownKey(t *testing.T) {
	s := NewStore(Default(), "")
	if err := s.Update(map[string]any{"colour": "blue"}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestStoreResetAndOnChange(t *testing.T) {
	s := NewStore(Default(), "")
	var seen []Config
	s.OnChange(func(c Config) { seen = append(seen, c) })

	if err := s.SetSendInterval(30); err != nil {
		t.Fatal(err)
	}
	s.ResetToDefaults()

	if len(seen) != 2 {
		t.Fatalf("expected 2 change notifications, got %d", len(seen))
	}
	if seen[0].SendIntervalSeconds != 30 || seen[1] != *Default() {
		t.Fatalf("unexpected notifications: %+v", seen)
	}
}

func TestStoreSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s := NewStore(Default(), path)
	if err := s.SetCollectorPort(9001); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CollectorPort != 9001 {
		t.Fatalf("saved port not read back: %d", cfg.CollectorPort)
	}
}

func TestStoreReloadKeepsCurrentOnInvalidValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s := NewStore(Default(), path)
	if err := s.SetScanInterval(45); err != nil {
		t.Fatal(err)
	}

	contents := `{"scan_interval_seconds": "soon", "send_interval_seconds": 15}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	s.reload(path)

	got := s.Get()
	if got.ScanIntervalSeconds != 45 {
		t.Fatalf("invalid reload value replaced current: %d", got.ScanIntervalSeconds)
	}
	if got.SendIntervalSeconds != 15 {
		t.Fatalf("valid reload value not applied: %d", got.SendIntervalSeconds)
	}
}
