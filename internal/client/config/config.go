// Package config holds the client's persisted settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/openmined/gamebox/internal/utils"
)

const (
	DefaultServerURL = "http://localhost:8780"
	configDirName    = ".gamebox"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, configDirName, "config.json")
	DefaultLibraryDir = filepath.Join(home, "Games", "GameBox")
	DefaultCacheDir   = filepath.Join(home, configDirName, "cache")
	DefaultLogDir     = filepath.Join(home, configDirName, "logs")
)

var (
	ErrNoServerURL  = errors.New("server url missing")
	ErrNoLibraryDir = errors.New("library dir missing")
)

type Config struct {
	ServerURL  string `json:"server_url" mapstructure:"server_url"`
	Username   string `json:"username,omitempty" mapstructure:"username"`
	Password   string `json:"password,omitempty" mapstructure:"password"`
	LibraryDir string `json:"library_dir" mapstructure:"library_dir"`
	CacheDir   string `json:"cache_dir" mapstructure:"cache_dir"`
	LogDir     string `json:"log_dir,omitempty" mapstructure:"log_dir"`

	// CompatPrefix is the compatibility layer prefix (the directory holding
	// drive_c). Empty disables compat path resolution.
	CompatPrefix string `json:"compat_prefix,omitempty" mapstructure:"compat_prefix"`
	CompatUser   string `json:"compat_user,omitempty" mapstructure:"compat_user"`

	// LenientPaths drops unresolvable template tokens instead of failing.
	LenientPaths bool `json:"lenient_paths,omitempty" mapstructure:"lenient_paths"`
	Workers      int  `json:"workers,omitempty" mapstructure:"workers"`

	Path string `json:"-" mapstructure:"config"`
}

// Validate normalizes paths and checks required fields.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrNoServerURL
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server url %q", c.ServerURL)
	}

	if c.LibraryDir == "" {
		return ErrNoLibraryDir
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}

	for _, p := range []*string{&c.LibraryDir, &c.CacheDir, &c.LogDir, &c.CompatPrefix, &c.Path} {
		if *p == "" {
			continue
		}
		resolved, err := utils.ResolvePath(*p)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", *p, err)
		}
		*p = resolved
	}
	return nil
}

func (c *Config) Save() error {
	if c.Path == "" {
		return errors.New("config path missing")
	}
	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	// may carry a password
	return os.WriteFile(c.Path, data, 0o600)
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Path = path
	return &cfg, nil
}
