package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg != *Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *again != *Default() {
		t.Fatalf("written defaults did not round-trip: %+v", again)
	}
}

func TestLoadInvalidJSONUsesDefaults(t *testing.T) {
	path := writeFile(t, `{"collector_port": 9000,,,`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg != *Default() {
		t.Fatalf("expected defaults for unparsable file, got %+v", cfg)
	}
}

func TestLoadFallsBackPerKey(t *testing.T) {
	path := writeFile(t, `{
		"collector_address": "10.1.2.3",
		"collector_port": 70000,
		"scan_interval_seconds": "60",
		"send_interval_seconds": true,
		"mystery_key": 1
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.CollectorAddress != "10.1.2.3" {
		t.Fatalf("CollectorAddress = %q, want 10.1.2.3", cfg.CollectorAddress)
	}
	if cfg.CollectorPort != def.CollectorPort {
		t.Fatalf("CollectorPort = %d, want default %d", cfg.CollectorPort, def.CollectorPort)
	}
	if cfg.ScanIntervalSeconds != def.ScanIntervalSeconds {
		t.Fatalf("numeric string should be rejected, got %d", cfg.ScanIntervalSeconds)
	}
	if cfg.SendIntervalSeconds != def.SendIntervalSeconds {
		t.Fatalf("boolean should be rejected, got %d", cfg.SendIntervalSeconds)
	}
}

func TestLoadAcceptsCommentsAndTrailingCommas(t *testing.T) {
	path := writeFile(t, `{
		// collector on the management VLAN
		"collector_address": "192.168.10.4",
		"collector_port": 9443, /* tls terminator */
		"scan_interval_seconds": 600,
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CollectorAddress != "192.168.10.4" || cfg.CollectorPort != 9443 || cfg.ScanIntervalSeconds != 600 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SendIntervalSeconds != Default().SendIntervalSeconds {
		t.Fatalf("absent key should keep default, got %d", cfg.SendIntervalSeconds)
	}
}

func TestLoadRejectsFractionalAndNegative(t *testing.T) {
	path := writeFile(t, `{"collector_port": 80.5, "scan_interval_seconds": -1}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CollectorPort != 8080 || cfg.ScanIntervalSeconds != 3600 {
		t.Fatalf("expected defaults, got port=%d scan=%d", cfg.CollectorPort, cfg.ScanIntervalSeconds)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, `{"collector_port": 9000}`)
	t.Setenv("INVENTORY_COLLECTOR_PORT", "9100")
	t.Setenv("INVENTORY_COLLECTOR_ADDRESS", "10.9.9.9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CollectorPort != 9100 || cfg.CollectorAddress != "10.9.9.9" {
		t.Fatalf("env override not applied: %+v", cfg)
	}
}

func TestValidateDefaults(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Fatalf("defaults should validate, got %v", errs)
	}

	cfg := Default()
	cfg.CollectorAddress = "collector.local"
	cfg.CollectorPort = -1
	if errs := cfg.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}

func TestCollectorURL(t *testing.T) {
	cfg := Default()
	if got := cfg.CollectorURL(); got != "http://127.0.0.1:8080" {
		t.Fatalf("CollectorURL() = %q", got)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		key     string
		raw     string
		want    any
		wantErr bool
	}{
		{KeyCollectorPort, "8081", 8081, false},
		{KeyCollectorPort, " 9000 ", 9000, false},
		{KeyCollectorPort, "80.5", nil, true},
		{KeyCollectorAddress, "10.0.0.1", "10.0.0.1", false},
		{KeyLogLevel, "debug", "debug", false},
		{"nope", "1", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseValue(tt.key, tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseValue(%s, %q) expected error", tt.key, tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseValue(%s, %q): %v", tt.key, tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseValue(%s, %q) = %#v, want %#v", tt.key, tt.raw, got, tt.want)
		}
	}
}
