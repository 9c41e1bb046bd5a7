// Package config handles loading and saving user configuration from
// ~/.config/colonnade/config.json.
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Config holds all user-configurable settings loaded from config.json
type Config struct {
	Browse BrowseConfig `json:"browse"`
	Search SearchConfig `json:"search"`
	Layout LayoutConfig `json:"layout"`
	Open   OpenConfig   `json:"open"`
}

// BrowseConfig holds column browsing settings
type BrowseConfig struct {
	ShowHidden      bool   `json:"showHidden"`
	StartPath       string `json:"startPath"` // Empty means home directory
	RestoreLastPath bool   `json:"restoreLastPath"`
}

// SearchConfig holds search-related settings
type SearchConfig struct {
	DebounceMs        int   `json:"debounceMs"`
	MaxContentBytes   int64 `json:"maxContentBytes"` // Files larger than this skip content matching
	RememberLastQuery bool  `json:"rememberLastQuery"`
}

// LayoutConfig holds column layout settings
type LayoutConfig struct {
	MinColumnWidth int `json:"minColumnWidth"`
	WindowWidth    int `json:"windowWidth"`
}

// OpenConfig holds settings for handing paths off to the OS
type OpenConfig struct {
	Terminals []string `json:"terminals"` // Tried in order when opening a terminal
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error // Stores parsing error if config failed to load
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: DefaultConfig(),
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Browse: BrowseConfig{
			ShowHidden:      false,
			StartPath:       "",
			RestoreLastPath: false,
		},
		Search: SearchConfig{
			DebounceMs:        300,
			MaxContentBytes:   10 * 1024 * 1024,
			RememberLastQuery: false,
		},
		Layout: LayoutConfig{
			MinColumnWidth: 100,
			WindowWidth:    1200,
		},
		Open: OpenConfig{
			Terminals: []string{"gnome-terminal", "xfce4-terminal", "konsole", "xterm"},
		},
	}
}

// ConfigPath returns the config file path: ~/.config/colonnade/config.json
// This is consistent across all platforms (Windows, macOS, Linux)
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "colonnade", "config.json")
}

// Load reads the configuration from the config file
// If the file doesn't exist, creates it with defaults
// If parsing fails, stores the error and returns defaults
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.path = ConfigPath()
	m.parseErr = nil

	configDir := filepath.Dir(m.path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		log.Printf("Config: failed to create directory %s: %v", configDir, err)
		return err
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		log.Printf("Config: creating default config at %s", m.path)
		m.config = DefaultConfig()
		if saveErr := m.saveUnlocked(); saveErr != nil {
			log.Printf("Config: failed to save default config: %v", saveErr)
			return saveErr
		}
		return nil
	}
	if err != nil {
		log.Printf("Config: failed to read %s: %v", m.path, err)
		return err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		// Keep running on defaults, surface the error to the caller
		log.Printf("Config: parse error in %s: %v", m.path, err)
		m.parseErr = err
		m.config = DefaultConfig()
		return nil
	}

	m.config = &cfg
	m.normalizeUnlocked()
	return nil
}

// normalizeUnlocked backfills zero values left by older config files
func (m *Manager) normalizeUnlocked() {
	def := DefaultConfig()
	if m.config.Search.DebounceMs <= 0 {
		m.config.Search.DebounceMs = def.Search.DebounceMs
	}
	if m.config.Search.MaxContentBytes <= 0 {
		m.config.Search.MaxContentBytes = def.Search.MaxContentBytes
	}
	if m.config.Layout.MinColumnWidth <= 0 {
		m.config.Layout.MinColumnWidth = def.Layout.MinColumnWidth
	}
	if m.config.Layout.WindowWidth <= 0 {
		m.config.Layout.WindowWidth = def.Layout.WindowWidth
	}
	if len(m.config.Open.Terminals) == 0 {
		m.config.Open.Terminals = def.Open.Terminals
	}
}

func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnlocked()
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// ParseError returns the parse error from the last Load, if any
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// SetShowHidden updates the hidden-entry filter default
func (m *Manager) SetShowHidden(show bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Browse.ShowHidden = show
	m.saveUnlocked()
}

// SetRememberLastQuery toggles retaining the last completed search query
func (m *Manager) SetRememberLastQuery(remember bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Search.RememberLastQuery = remember
	m.saveUnlocked()
}

// SetStartPath records the path to restore on next launch
func (m *Manager) SetStartPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Browse.StartPath = path
	m.saveUnlocked()
}

// SetWindowWidth records the last window width
func (m *Manager) SetWindowWidth(width int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Layout.WindowWidth = width
	m.saveUnlocked()
}
