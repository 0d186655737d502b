package config

import (
	"errors"
	"os"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Store is the live configuration shared by the scheduler and the CLI. Every
// setter validates first and leaves the current value untouched on error.
type Store struct {
	mu   sync.RWMutex
	cfg  Config
	path string

	subMu sync.Mutex
	subs  []func(Config)
}

// NewStore wraps cfg. path is used by Save and Watch; it may be empty for an
// in-memory store.
func NewStore(cfg *Config, path string) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{cfg: *cfg, path: path}
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Store) Path() string { return s.path }

func (s *Store) SetCollectorAddress(addr string) error {
	return s.set(KeyCollectorAddress, addr)
}

func (s *Store) SetCollectorPort(port int) error {
	return s.set(KeyCollectorPort, port)
}

func (s *Store) SetScanInterval(seconds int) error {
	return s.set(KeyScanInterval, seconds)
}

func (s *Store) SetSendInterval(seconds int) error {
	return s.set(KeySendInterval, seconds)
}

func (s *Store) set(key string, value any) error {
	return s.Update(map[string]any{key: value})
}

// Update applies several keys at once. If any value is rejected nothing is
// applied and the joined validation errors are returned.
func (s *Store) Update(values map[string]any) error {
	s.mu.Lock()
	next := s.cfg
	var errs []error
	for _, key := range knownKeys {
		value, ok := values[key]
		if !ok {
			continue
		}
		if err := assign(&next, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	for key, value := range values {
		if _, ok := fieldKinds[key]; !ok {
			errs = append(errs, &ValidationError{Field: key, Value: value, Reason: "unknown key"})
		}
	}
	if len(errs) > 0 {
		s.mu.Unlock()
		return errors.Join(errs...)
	}
	changed := next != s.cfg
	s.cfg = next
	s.mu.Unlock()

	if changed {
		s.notify(next)
	}
	return nil
}

// ResetToDefaults restores every key to its default value.
func (s *Store) ResetToDefaults() {
	s.mu.Lock()
	s.cfg = *Default()
	cfg := s.cfg
	s.mu.Unlock()
	s.notify(cfg)
}

// Save persists the current configuration to the store's path.
func (s *Store) Save() error {
	cfg := s.Get()
	return SaveTo(&cfg, s.path)
}

// OnChange registers fn to be called with the new configuration after every
// successful change, including reloads triggered by Watch.
func (s *Store) OnChange(fn func(Config)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) notify(cfg Config) {
	s.subMu.Lock()
	subs := slices.Clone(s.subs)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(cfg)
	}
}

// Watch reloads the file whenever it changes on disk. Keys that fail
// validation on reload keep their current value. The watch lasts for the
// life of the process.
func (s *Store) Watch() {
	if s.path == "" {
		return
	}
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	v.OnConfigChange(func(e fsnotify.Event) {
		s.reload(e.Name)
	})
	v.WatchConfig()
	log.Info("watching config for changes", "path", s.path)
}

func (s *Store) reload(trigger string) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		log.Warn("config reload failed", "path", s.path, "trigger", trigger, "error", err)
		return
	}

	s.mu.Lock()
	next, errs := parse(raw, &s.cfg)
	changed := *next != s.cfg
	s.cfg = *next
	s.mu.Unlock()

	for _, e := range errs {
		log.Warn("config value rejected on reload, keeping current", "path", s.path, "error", e)
	}
	if changed {
		log.Info("config reloaded", "path", s.path)
		s.notify(*next)
	}
}
