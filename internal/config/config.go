package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"

	"github.com/breeze-rmm/inventory-agent/internal/logging"
)

var log = logging.L("config")

// EnvPrefix is prepended to upper-cased keys for environment overrides,
// e.g. INVENTORY_COLLECTOR_PORT.
const EnvPrefix = "INVENTORY"

// Config keys as they appear in the file.
const (
	KeyCollectorAddress = "collector_address"
	KeyCollectorPort    = "collector_port"
	KeyScanInterval     = "scan_interval_seconds"
	KeySendInterval     = "send_interval_seconds"
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
	KeyLogFile          = "log_file"
	KeyLogMaxSizeMB     = "log_max_size_mb"
	KeyLogMaxBackups    = "log_max_backups"
)

type Config struct {
	CollectorAddress    string `mapstructure:"collector_address" json:"collector_address" yaml:"collector_address"`
	CollectorPort       int    `mapstructure:"collector_port" json:"collector_port" yaml:"collector_port"`
	ScanIntervalSeconds int    `mapstructure:"scan_interval_seconds" json:"scan_interval_seconds" yaml:"scan_interval_seconds"`
	SendIntervalSeconds int    `mapstructure:"send_interval_seconds" json:"send_interval_seconds" yaml:"send_interval_seconds"`

	LogLevel      string `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
	LogFormat     string `mapstructure:"log_format" json:"log_format" yaml:"log_format"`
	LogFile       string `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" json:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" json:"log_max_backups" yaml:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		CollectorAddress:    "127.0.0.1",
		CollectorPort:       8080,
		ScanIntervalSeconds: 3600,
		SendIntervalSeconds: 300,
		LogLevel:            "info",
		LogFormat:           "text",
		LogMaxSizeMB:        10,
		LogMaxBackups:       3,
	}
}

// CollectorURL is the base URL of the collector service.
func (c Config) CollectorURL() string {
	return "http://" + c.CollectorAddress + ":" + strconv.Itoa(c.CollectorPort)
}

// DefaultPath is where the agent looks for its config when --config is not
// given.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.json")
}

// Load reads path (or DefaultPath when empty). A missing file is created
// with defaults. A file that cannot be parsed yields defaults. Individual
// keys with invalid values fall back to their defaults and are logged.
// Comments and trailing commas are accepted.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := SaveTo(cfg, path); err != nil {
			log.Warn("could not write default config", "path", path, logging.KeyError, err)
		} else {
			log.Info("wrote default config", "path", path)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, errs := parse(raw, Default())
	for _, e := range errs {
		log.Warn("config value rejected, using default", "path", path, logging.KeyError, e)
	}
	return cfg, nil
}

// parse decodes raw JSON(C) and validates it key by key against base: a
// rejected or absent key keeps base's value. Unparsable input returns base
// unchanged together with the parse error.
func parse(raw []byte, base *Config) (*Config, []error) {
	cfg := *base

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(jsonc.ToJSON(raw))); err != nil {
		return &cfg, []error{fmt.Errorf("parse config: %w", err)}
	}

	var errs []error
	for _, key := range unknownKeys(v.AllKeys()) {
		log.Warn("ignoring unknown config key", "key", key)
	}
	for _, key := range knownKeys {
		value, ok := lookup(v, key)
		if !ok {
			continue
		}
		if err := assign(&cfg, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return &cfg, errs
}

// lookup prefers an environment override (always a string, parsed
// leniently) over the file's raw JSON value (strictly typed).
func lookup(v *viper.Viper, key string) (any, bool) {
	envKey := EnvPrefix + "_" + strings.ToUpper(key)
	if s, ok := os.LookupEnv(envKey); ok {
		if fieldKinds[key] == kindInt {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				return n, true
			}
		}
		return s, true
	}
	if !v.IsSet(key) {
		return nil, false
	}
	return v.Get(key), true
}

func unknownKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := fieldKinds[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

// SaveTo writes cfg as JSON to path (DefaultPath when empty), creating the
// parent directory.
func SaveTo(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	v := viper.New()
	v.SetConfigType("json")
	for key, value := range cfg.asMap() {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return os.Chmod(path, 0o644)
}

func (c *Config) asMap() map[string]any {
	return map[string]any{
		KeyCollectorAddress: c.CollectorAddress,
		KeyCollectorPort:    c.CollectorPort,
		KeyScanInterval:     c.ScanIntervalSeconds,
		KeySendInterval:     c.SendIntervalSeconds,
		KeyLogLevel:         c.LogLevel,
		KeyLogFormat:        c.LogFormat,
		KeyLogFile:          c.LogFile,
		KeyLogMaxSizeMB:     c.LogMaxSizeMB,
		KeyLogMaxBackups:    c.LogMaxBackups,
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "InventoryAgent")
	case "darwin":
		return "/Library/Application Support/InventoryAgent"
	default:
		return "/etc/inventory-agent"
	}
}
