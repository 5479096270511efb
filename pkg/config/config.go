package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/rubiojr/mithril/pkg/cache"
	"github.com/rubiojr/mithril/pkg/kv"
	"github.com/rubiojr/mithril/pkg/session"
)

//go:embed config.toml.sample
var configTemplate string

const templateStorageDir = "/home/user/.local/share/mithril"

type Config struct {
	API     APIConfig     `toml:"api"`
	Cache   CacheConfig   `toml:"cache"`
	Session SessionConfig `toml:"session"`
	Serve   ServeConfig   `toml:"serve"`
}

type APIConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

type CacheConfig struct {
	Backend        string   `toml:"backend"`
	Dir            string   `toml:"dir"`
	Compress       bool     `toml:"compress"`
	MaxSize        int      `toml:"max_size"`
	TTL            Duration `toml:"ttl"`
	SnapshotMaxAge Duration `toml:"snapshot_max_age"`
}

type SessionConfig struct {
	Debounce       Duration `toml:"debounce"`
	SnippetDelay   Duration `toml:"snippet_delay"`
	MaxResults     int      `toml:"max_results"`
	VisibleResults int      `toml:"visible_results"`
	TitleWords     int      `toml:"title_words"`
	// Math is a pointer so an absent key keeps the default.
	Math *bool `toml:"math,omitempty"`
}

type ServeConfig struct {
	Listen string `toml:"listen"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{}
	cfg.Cache.Dir = storageDir
	cfg.Cache.Compress = true
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8080"
	}
	if c.API.Timeout.Duration <= 0 {
		c.API.Timeout = Duration{10 * time.Second}
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = kv.BackendFile
	}
	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = cache.DefaultMaxSize
	}
	if c.Cache.TTL.Duration <= 0 {
		c.Cache.TTL = Duration{cache.DefaultTTL}
	}
	if c.Cache.SnapshotMaxAge.Duration <= 0 {
		c.Cache.SnapshotMaxAge = Duration{cache.DefaultSnapshotMaxAge}
	}
	if c.Session.Debounce.Duration <= 0 {
		c.Session.Debounce = Duration{session.DefaultDebounce}
	}
	if c.Session.SnippetDelay.Duration <= 0 {
		c.Session.SnippetDelay = Duration{session.DefaultSnippetDelay}
	}
	if c.Session.MaxResults <= 0 {
		c.Session.MaxResults = 50
	}
	if c.Session.VisibleResults <= 0 {
		c.Session.VisibleResults = session.DefaultVisibleResults
	}
	if c.Session.TitleWords <= 0 {
		c.Session.TitleWords = 15
	}
	if c.Session.Math == nil {
		enabled := true
		c.Session.Math = &enabled
	}
	if c.Serve.Listen == "" {
		c.Serve.Listen = "127.0.0.1:8090"
	}
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.Cache.Dir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.Cache.Dir = storageDir
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate reports settings that would only fail later, at first use.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid api.base_url %q", c.API.BaseURL)
	}
	switch c.Cache.Backend {
	case kv.BackendFile, kv.BackendSQLite, kv.BackendBadger, kv.BackendMemory:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.Cache.Dir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, templateStorageDir, storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// StoreOptions returns the durable store settings for the cache.
func (c *Config) StoreOptions() kv.Options {
	return kv.Options{
		Backend:  c.Cache.Backend,
		Dir:      c.Cache.Dir,
		Compress: c.Cache.Compress,
	}
}

// SessionOptions maps the cache and session sections onto session.Options.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Cache: cache.Options{
			MaxSize:        c.Cache.MaxSize,
			TTL:            c.Cache.TTL.Duration,
			SnapshotMaxAge: c.Cache.SnapshotMaxAge.Duration,
		},
		Controller: session.ControllerOptions{
			Debounce:       c.Session.Debounce.Duration,
			SnippetDelay:   c.Session.SnippetDelay.Duration,
			MaxResults:     c.Session.MaxResults,
			VisibleResults: c.Session.VisibleResults,
			TitleWords:     c.Session.TitleWords,
		},
		DisableMath: c.Session.Math != nil && !*c.Session.Math,
	}
}

// GetDefaultStorageDir returns the default directory for the cache store
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	mithrilDir := filepath.Join(dataDir, "mithril")
	if err := os.MkdirAll(mithrilDir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", mithrilDir, err)
	}

	return mithrilDir, nil
}

// GetConfigDir returns the configuration directory for mithril
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	mithrilConfigDir := filepath.Join(configDir, "mithril")
	if err := os.MkdirAll(mithrilConfigDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", mithrilConfigDir, err)
	}

	return mithrilConfigDir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
