package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/gamebox/internal/client/config"
	"github.com/openmined/gamebox/internal/utils"
	"github.com/openmined/gamebox/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix   = "GAMEBOX"
	logFileName = "gamebox.log"
)

var home, _ = os.UserHomeDir()

// stdoutLevel is raised while the progress view owns the terminal.
var stdoutLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:           "gamebox",
	Short:         "GameBox library sync client",
	Version:       version.Detailed(),
	SilenceErrors: true,
}

func init() {
	addPersistentFlags(rootCmd)
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().SortFlags = false
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "GameBox config file")
	cmd.PersistentFlags().StringP("server", "s", "", "GameBox server URL")
	cmd.PersistentFlags().StringP("library", "l", "", "Local library directory")
	cmd.PersistentFlags().StringP("user", "u", "", "Identity name sent with basic auth")
	cmd.PersistentFlags().IntP("workers", "w", 0, "Concurrent transfers (0 = one per CPU)")
	cmd.PersistentFlags().Bool("verbose", false, "Log debug output to the terminal")
}

func main() {
	logDir := config.DefaultLogDir
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stdoutLevel.Set(slog.LevelInfo)
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      stdoutLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(utils.NewLogInterceptor(file), &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor stamps each line itself
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			stdoutLevel.Set(slog.LevelDebug)
		}
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "%s %s\n", red.Render("ERROR"), err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the JSON config at the resolved path, then layers
// GAMEBOX_* environment variables and explicitly set flags on top. The
// result is not validated.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := resolveConfigPath(cmd)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	v.SetDefault("server_url", config.DefaultServerURL)
	v.SetDefault("library_dir", config.DefaultLibraryDir)
	v.SetDefault("cache_dir", config.DefaultCacheDir)
	v.SetDefault("log_dir", config.DefaultLogDir)
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("compat_prefix", "")
	v.SetDefault("compat_user", "")
	v.SetDefault("lenient_paths", false)
	v.SetDefault("workers", 0)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	for key, name := range map[string]string{
		"server_url":  "server",
		"library_dir": "library",
		"username":    "user",
		"workers":     "workers",
	} {
		if f := cmd.Flag(name); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = path
	return &cfg, nil
}
