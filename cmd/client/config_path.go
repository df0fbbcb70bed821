package main

import (
	"os"
	"path/filepath"

	"github.com/openmined/gamebox/internal/client/config"
	"github.com/openmined/gamebox/internal/utils"
	"github.com/spf13/cobra"
)

const envConfigPath = envPrefix + "_CONFIG_PATH"

// resolveConfigPath picks the config file: an explicit --config, then
// GAMEBOX_CONFIG_PATH, then the first existing well-known location, then
// the default path (which may not exist yet).
func resolveConfigPath(cmd *cobra.Command) string {
	if f := cmd.Flag("config"); f != nil && f.Changed {
		return f.Value.String()
	}
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	for _, p := range configCandidates() {
		if utils.FileExists(p) {
			return p
		}
	}
	return config.DefaultConfigPath
}

func configCandidates() []string {
	paths := []string{config.DefaultConfigPath}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "gamebox", "config.json"))
	}
	return append(paths, filepath.Join(home, ".config", "gamebox", "config.json"))
}
