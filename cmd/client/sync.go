package main

import (
	"context"
	"fmt"

	"github.com/openmined/gamebox/internal/client/syncer"
	"github.com/openmined/gamebox/internal/client/transfer"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newSavesCmd())
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [game...]",
		Short: "Install or update games and sync their saves",
		Long:  "Fetch missing install files and reconcile save folders in both directions. With no arguments every game the server lists is synced.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newClientEnv(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			title := "Syncing library"
			if len(args) == 1 {
				title = "Syncing " + args[0]
			}
			return runWithProgress(cmd.Context(), title, func(ctx context.Context, events chan<- transfer.Event) error {
				s, unlock, err := env.lockedSyncer(events)
				if err != nil {
					return err
				}
				defer unlock()
				return s.SyncLibrary(ctx, args)
			})
		},
	}
}

func newSavesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saves",
		Short: "Move save files in one direction",
	}
	cmd.AddCommand(newSavesDirCmd(syncer.Pull, "Download saves that differ from the server"))
	cmd.AddCommand(newSavesDirCmd(syncer.Push, "Upload local saves that are newer than the server's"))
	return cmd
}

func newSavesDirCmd(dir syncer.Direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   dir.String() + " <game>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newClientEnv(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			game := args[0]
			title := fmt.Sprintf("Saves %s: %s", dir, game)
			return runWithProgress(cmd.Context(), title, func(ctx context.Context, events chan<- transfer.Event) error {
				s, unlock, err := env.lockedSyncer(events)
				if err != nil {
					return err
				}
				defer unlock()
				return s.SyncSaves(ctx, game, dir)
			})
		},
	}
}
