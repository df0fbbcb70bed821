package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/openmined/gamebox/internal/client/cache"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newGamesCmd())
	rootCmd.AddCommand(newManifestCmd())
}

func newGamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List the games visible to this identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newClientEnv(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			games, err := env.remote.ListGames(cmd.Context())
			if err != nil {
				return err
			}
			if len(games) == 0 {
				cmd.Println(gray.Render("no games available"))
				return nil
			}

			store := cache.New(env.cfg.CacheDir, env.remote)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tENGINE\tMANIFEST")
			for _, g := range games {
				state := "-"
				if store.Cached(g.Name) {
					state = "cached"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", g.Name, g.Engine, state)
			}
			return w.Flush()
		},
	}
}

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Manage cached game manifests",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "invalidate <game...>",
		Short: "Drop cached manifests so the next sync fetches them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			store := cache.New(cfg.CacheDir, nil)
			for _, game := range args {
				if err := store.Invalidate(game); err != nil {
					return err
				}
				cmd.Printf("%s %s\n", green.Render("invalidated"), game)
			}
			return nil
		},
	})
	return cmd
}
