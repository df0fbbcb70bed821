package blob

import (
	"errors"
	"fmt"
	"net/url"
)

const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

type Config struct {
	Backend string   `mapstructure:"backend"`
	Dir     string   `mapstructure:"dir"`
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	BucketName    string `mapstructure:"bucket_name"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Endpoint      string `mapstructure:"endpoint"`
	UseAccelerate bool   `mapstructure:"use_accelerate"`
}

func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendFS:
		if c.Dir == "" {
			return errors.New("blob `dir` required for the fs backend")
		}
		return nil
	case BackendS3:
		return c.S3.Validate()
	default:
		return fmt.Errorf("unknown blob backend %q", c.Backend)
	}
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access_key required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key required")
	}
	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
		}
	}
	return nil
}
