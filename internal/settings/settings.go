// Package settings is a small key/value store persisted as YAML.
package settings

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"remoteqna/internal/models"
	"remoteqna/internal/qna"
)

// Keys used by the application.
const (
	KeySavePasswords   = "save_passwords"
	KeyLastUsedProfile = "last_used_profile"
	KeyRecentQueries   = "recent_queries"
	KeyQnAPathWindows  = "qna_path_windows"
	KeyQnAPathLinux    = "qna_path_linux"
	KeyQnAPathMac      = "qna_path_mac"
)

// Path is the settings file inside dir.
func Path(dir string) string {
	return filepath.Join(dir, "settings.yaml")
}

type definition struct {
	value       any
	persistent  bool
	description string
}

// Store holds settings values plus registered defaults. Values set with
// persist are written to the file immediately.
type Store struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	values   map[string]any
	defaults map[string]definition
}

// Open loads path. A missing file is not an error; a corrupt one is
// logged and ignored so the application keeps its defaults.
func Open(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{
		path:     path,
		logger:   logger,
		values:   map[string]any{},
		defaults: map[string]definition{},
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		logger.Warn("read settings", "path", path, "err", err)
	default:
		if err := yaml.Unmarshal(data, &s.values); err != nil {
			logger.Warn("parse settings", "path", path, "err", err)
			s.values = map[string]any{}
		}
		if s.values == nil {
			s.values = map[string]any{}
		}
	}
	return s
}

// Define registers a default for key. Redefining a key just replaces its
// default; it never fails and never clobbers a stored value. A persistent
// default is written to the file when the key has no value yet.
func (s *Store) Define(key string, persistent bool, def any, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[key] = definition{value: def, persistent: persistent, description: description}
	if _, ok := s.values[key]; ok || !persistent {
		return nil
	}
	s.values[key] = def
	return s.saveLocked()
}

// Get returns the stored value, else the default, else nil.
func (s *Store) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return s.defaults[key].value
}

// String returns key as a string, or "" if unset or not a string.
func (s *Store) String(key string) string {
	v, _ := s.Get(key).(string)
	return v
}

// Bool returns key as a bool, or def if unset or not a bool.
func (s *Store) Bool(key string, def bool) bool {
	if v, ok := s.Get(key).(bool); ok {
		return v
	}
	return def
}

// Int returns key as an int, or def if unset or not a number.
func (s *Store) Int(key string, def int) int {
	switch v := s.Get(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Strings returns key as a string slice.
func (s *Store) Strings(key string) []string {
	switch v := s.Get(key).(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Set stores value; with persist it is written to the file at once.
func (s *Store) Set(key string, value any, persist bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	if !persist {
		return nil
	}
	return s.saveLocked()
}

// Upsert stores and persists value whether or not key was defined.
func (s *Store) Upsert(key string, value any) error {
	return s.Set(key, value, true)
}

// Delete drops the stored value so Get falls back to the default.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

// Keys lists every key that has a value or a default.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	for k := range s.values {
		seen[k] = true
	}
	for k := range s.defaults {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Description returns the text given to Define for key.
func (s *Store) Description(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults[key].description
}

func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		s.logger.Warn("write settings", "path", s.path, "err", err)
		return err
	}
	return nil
}

// RegisterDefaults defines every setting the application reads.
func RegisterDefaults(s *Store) {
	_ = s.Define(KeySavePasswords, false, true, "Whether to save passwords in encrypted form")
	_ = s.Define(KeyLastUsedProfile, false, "", "Name of the last used connection profile")
	_ = s.Define(KeyRecentQueries, false, []string{}, "Recent queries, most recent first")
	_ = s.Define(KeyQnAPathWindows, false, qna.DefaultToolPath(models.OSWindows), "QnA executable path for Windows systems")
	_ = s.Define(KeyQnAPathLinux, false, qna.DefaultToolPath(models.OSLinux), "QnA executable path for Linux systems")
	_ = s.Define(KeyQnAPathMac, false, qna.DefaultToolPath(models.OSMac), "QnA executable path for macOS systems")
}

// ToolPathFor returns the configured QnA path for osType.
func ToolPathFor(s *Store, osType models.OSType) string {
	key := KeyQnAPathLinux
	switch osType {
	case models.OSWindows:
		key = KeyQnAPathWindows
	case models.OSMac:
		key = KeyQnAPathMac
	}
	if p := s.String(key); p != "" {
		return p
	}
	return qna.DefaultToolPath(osType)
}
