package server

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/openmined/gamebox/internal/server/blob"
	"github.com/openmined/gamebox/internal/server/gate"
	"github.com/openmined/gamebox/internal/server/library"
	"github.com/openmined/gamebox/internal/utils"
)

const (
	DefaultAddr      = "127.0.0.1:8780"
	DefaultRateLimit = "100-S"
	DefaultDataDir   = ".data"
)

type Config struct {
	HTTP    HTTPConfig     `mapstructure:"http"`
	Library library.Config `mapstructure:"library"`
	Auth    gate.Config    `mapstructure:"auth"`
	Blob    blob.Config    `mapstructure:"blob"`
	DataDir string         `mapstructure:"data_dir"`
	DBPath  string         `mapstructure:"db_path"`
}

type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`
	RateLimit string `mapstructure:"rate_limit"`
}

func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *HTTPConfig) Validate() error {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.RateLimit == "" {
		c.RateLimit = DefaultRateLimit
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("http `cert_file` and `key_file` must be set together")
	}
	if c.TLS() {
		if !utils.FileExists(c.CertFile) {
			return fmt.Errorf("http cert_file %q not found", c.CertFile)
		}
		if !utils.FileExists(c.KeyFile) {
			return fmt.Errorf("http key_file %q not found", c.KeyFile)
		}
	}
	return nil
}

// Validate fills paths derived from DataDir and validates every section.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("data_dir: %w", err)
	}
	c.DataDir = dataDir

	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "state.db")
	}
	if c.Auth.IdentitiesDir == "" {
		c.Auth.IdentitiesDir = filepath.Join(c.DataDir, "identities")
	}
	if c.Blob.Backend == "" || c.Blob.Backend == blob.BackendFS {
		if c.Blob.Dir == "" {
			c.Blob.Dir = filepath.Join(c.DataDir, "saves")
		}
	}

	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Blob.Validate(); err != nil {
		return fmt.Errorf("blob: %w", err)
	}
	return nil
}
