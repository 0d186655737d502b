package config

import (
	"errors"
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"
)

// ErrInvalidConfig is wrapped by every ValidationError.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError describes a rejected value for a single key.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %#v)", e.Field, e.Reason, e.Value)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
)

var fieldKinds = map[string]fieldKind{
	KeyCollectorAddress: kindString,
	KeyCollectorPort:    kindInt,
	KeyScanInterval:     kindInt,
	KeySendInterval:     kindInt,
	KeyLogLevel:         kindString,
	KeyLogFormat:        kindString,
	KeyLogFile:          kindString,
	KeyLogMaxSizeMB:     kindInt,
	KeyLogMaxBackups:    kindInt,
}

// knownKeys fixes the order keys are validated and reported in.
var knownKeys = []string{
	KeyCollectorAddress,
	KeyCollectorPort,
	KeyScanInterval,
	KeySendInterval,
	KeyLogLevel,
	KeyLogFormat,
	KeyLogFile,
	KeyLogMaxSizeMB,
	KeyLogMaxBackups,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// assign validates value for key and, only if it is acceptable, stores it in
// cfg.
func assign(cfg *Config, key string, value any) error {
	switch key {
	case KeyCollectorAddress:
		s, err := stringValue(key, value)
		if err != nil {
			return err
		}
		addr, perr := netip.ParseAddr(s)
		if perr != nil || !addr.Is4() {
			return &ValidationError{Field: key, Value: value, Reason: "must be an IPv4 address literal"}
		}
		cfg.CollectorAddress = addr.String()
	case KeyCollectorPort:
		n, err := intValue(key, value, 0, math.MaxUint16)
		if err != nil {
			return err
		}
		cfg.CollectorPort = n
	case KeyScanInterval:
		n, err := intValue(key, value, 0, math.MaxInt32)
		if err != nil {
			return err
		}
		cfg.ScanIntervalSeconds = n
	case KeySendInterval:
		n, err := intValue(key, value, 0, math.MaxInt32)
		if err != nil {
			return err
		}
		cfg.SendIntervalSeconds = n
	case KeyLogLevel:
		s, err := stringValue(key, value)
		if err != nil {
			return err
		}
		if !validLogLevels[strings.ToLower(s)] {
			return &ValidationError{Field: key, Value: value, Reason: "must be one of debug, info, warn, error"}
		}
		cfg.LogLevel = strings.ToLower(s)
	case KeyLogFormat:
		s, err := stringValue(key, value)
		if err != nil {
			return err
		}
		s = strings.ToLower(s)
		if s != "text" && s != "json" {
			return &ValidationError{Field: key, Value: value, Reason: "must be text or json"}
		}
		cfg.LogFormat = s
	case KeyLogFile:
		s, err := stringValue(key, value)
		if err != nil {
			return err
		}
		cfg.LogFile = s
	case KeyLogMaxSizeMB:
		n, err := intValue(key, value, 1, 1024)
		if err != nil {
			return err
		}
		cfg.LogMaxSizeMB = n
	case KeyLogMaxBackups:
		n, err := intValue(key, value, 0, 100)
		if err != nil {
			return err
		}
		cfg.LogMaxBackups = n
	default:
		return &ValidationError{Field: key, Value: value, Reason: "unknown key"}
	}
	return nil
}

func stringValue(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", &ValidationError{Field: key, Value: value, Reason: "must be a string"}
	}
	return strings.TrimSpace(s), nil
}

// intValue accepts Go integers and integral JSON numbers. Strings, booleans
// and fractional numbers are rejected.
func intValue(key string, value any, lo, hi int) (int, error) {
	var n int64
	switch x := value.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, &ValidationError{Field: key, Value: value, Reason: "must be an integer"}
		}
		if x < math.MinInt64 || x > math.MaxInt64 {
			return 0, &ValidationError{Field: key, Value: value, Reason: fmt.Sprintf("must be between %d and %d", lo, hi)}
		}
		n = int64(x)
	default:
		return 0, &ValidationError{Field: key, Value: value, Reason: "must be an integer"}
	}
	if n < int64(lo) || n > int64(hi) {
		return 0, &ValidationError{Field: key, Value: value, Reason: fmt.Sprintf("must be between %d and %d", lo, hi)}
	}
	return int(n), nil
}

// Validate re-checks every field of c and returns all problems found.
func (c *Config) Validate() []error {
	var errs []error
	scratch := *c
	for key, value := range c.asMap() {
		if err := assign(&scratch, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ParseValue converts a command-line string into the type key expects, so
// "8081" becomes an int for collector_port. It does not range-check.
func ParseValue(key, raw string) (any, error) {
	kind, ok := fieldKinds[key]
	if !ok {
		return nil, &ValidationError{Field: key, Value: raw, Reason: "unknown key"}
	}
	if kind == kindInt {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, &ValidationError{Field: key, Value: raw, Reason: "must be an integer"}
		}
		return n, nil
	}
	return raw, nil
}

// Keys lists every configuration key in display order.
func Keys() []string {
	return append([]string(nil), knownKeys...)
}
