package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/gamebox/internal/server"
	"github.com/openmined/gamebox/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "GAMEBOX"

var rootCmd = &cobra.Command{
	Use:     "gamebox-server",
	Short:   "GameBox catalog server",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		slog.Info("gamebox server", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

		srv, err := server.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer slog.Info("Bye!")
		return srv.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "f", "", "Path to the config file (yaml or json)")
	rootCmd.PersistentFlags().StringP("library", "l", "", "Library directory")
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().StringP("cert", "c", "", "Path to the certificate file")
	rootCmd.Flags().StringP("key", "k", "", "Path to the key file")
}

func main() {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers, lowest first: defaults, config file, .env and process
// environment (GAMEBOX_HTTP_ADDR ...), then flags set on the command line.
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/gamebox")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"http.addr":      "bind",
		"http.cert_file": "cert",
		"http.key_file":  "key",
		"library.dir":    "library",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can reach it on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", server.DefaultDataDir)
	v.SetDefault("db_path", "")

	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("http.rate_limit", server.DefaultRateLimit)

	v.SetDefault("library.dir", "")
	v.SetDefault("library.manifest_dir", "")

	v.SetDefault("auth.identities_dir", "")
	v.SetDefault("auth.default_identity", "")
	v.SetDefault("auth.session_idle_timeout", "10m")
	v.SetDefault("auth.cookie_name", "")
	v.SetDefault("auth.identity_cache_ttl", "1m")

	v.SetDefault("blob.backend", "fs")
	v.SetDefault("blob.dir", "")
	v.SetDefault("blob.s3.bucket_name", "")
	v.SetDefault("blob.s3.region", "")
	v.SetDefault("blob.s3.access_key", "")
	v.SetDefault("blob.s3.secret_key", "")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.use_accelerate", false)
}
