package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openmined/gamebox/internal/client/watcher"
	"github.com/openmined/gamebox/internal/utils"
	"github.com/openmined/gamebox/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newWatchCmd())
}

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [game...]",
		Short: "Keep save folders in sync until interrupted",
		Long:  "Run a two-way save sync, then upload local changes as they happen and download saves other devices upload. With no arguments every game the server lists is followed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newClientEnv(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			slog.Info("gamebox watch", "version", version.Version, "server", env.cfg.ServerURL, "library", env.cfg.LibraryDir)

			s, unlock, err := env.lockedSyncer(nil)
			if err != nil {
				return err
			}
			defer unlock()

			games := args
			if len(games) == 0 {
				list, err := env.remote.ListGames(cmd.Context())
				if err != nil {
					return err
				}
				for _, g := range list {
					games = append(games, g.Name)
				}
			}

			d := &watcher.Daemon{
				Syncer:   s,
				Source:   env.remote,
				Games:    games,
				DeviceID: utils.DeviceID(),
				Debounce: debounce,
			}

			defer slog.Info("Bye!")
			if err := d.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "Quiet period after a local write before uploading")
	return cmd
}
