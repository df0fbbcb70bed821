package main

import (
	"fmt"

	"github.com/openmined/gamebox/internal/client/config"
	"github.com/openmined/gamebox/internal/client/pathres"
	"github.com/openmined/gamebox/internal/client/syncer"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newResolveCmd())
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <game>",
		Short: "Show where a game's sync folders live on this machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newClientEnv(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			var opts []syncer.Option
			if lenient, _ := cmd.Flags().GetBool("lenient"); lenient {
				opts = append(opts, syncer.WithResolver(resolverFor(env.cfg, pathres.Lenient())))
			}
			s, err := syncer.New(env.cfg, env.remote, opts...)
			if err != nil {
				return err
			}

			folders, err := s.Folders(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(folders) == 0 {
				fmt.Fprintln(out, gray.Render("no sync folders declared"))
				return nil
			}
			for _, f := range folders {
				fmt.Fprintf(out, "%s\n  %s %s\n  %s %s\n", bold.Render(f.Template),
					gray.Render("path"), cyan.Render(f.Root),
					gray.Render("key "), f.Key)
			}
			return nil
		},
	}
	cmd.Flags().Bool("lenient", false, "Drop unresolvable path tokens instead of failing")
	return cmd
}

func resolverFor(cfg *config.Config, extra ...pathres.Option) *pathres.Resolver {
	var opts []pathres.Option
	if cfg.CompatPrefix != "" {
		opts = append(opts, pathres.WithCompat(cfg.CompatPrefix, cfg.CompatUser))
	}
	return pathres.New(append(opts, extra...)...)
}
