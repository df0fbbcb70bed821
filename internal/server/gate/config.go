package gate

import (
	"errors"
	"time"
)

const (
	DefaultSessionIdleTimeout = 10 * time.Minute
	DefaultCookieName         = "gamebox_session"
	DefaultIdentityCacheTTL   = time.Minute
)

type Config struct {
	// IdentitiesDir holds one <name>.yaml record per identity.
	IdentitiesDir string `mapstructure:"identities_dir"`

	// DefaultIdentity binds requests that carry neither a session nor
	// credentials. Empty means such requests get 401.
	DefaultIdentity string `mapstructure:"default_identity"`

	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	CookieName         string        `mapstructure:"cookie_name"`
	IdentityCacheTTL   time.Duration `mapstructure:"identity_cache_ttl"`
}

func (c *Config) Validate() error {
	if c.IdentitiesDir == "" {
		return errors.New("auth `identities_dir` is required")
	}
	if c.SessionIdleTimeout <= 0 {
		c.SessionIdleTimeout = DefaultSessionIdleTimeout
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.IdentityCacheTTL <= 0 {
		c.IdentityCacheTTL = DefaultIdentityCacheTTL
	}
	return nil
}
