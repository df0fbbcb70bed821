package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/openmined/gamebox/internal/server/library"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newScanCmd())
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [game...]",
		Short: "Write manifests for library games",
		Long:  "Walk each game directory, honoring .gameboxignore, and write its manifest.csv. With no arguments every game in the library is scanned.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Library.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			lib := library.New(&cfg.Library)
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				scanned, err := lib.ScanAll(cmd.Context())
				fmt.Fprintf(out, "scanned %d games\n", len(scanned))
				return err
			}

			for _, game := range args {
				m, err := lib.Scan(cmd.Context(), game)
				if err != nil {
					return fmt.Errorf("scan %s: %w", game, err)
				}
				fmt.Fprintf(out, "%s: %d files, %s\n", game, len(m.Files), humanize.IBytes(uint64(m.TotalSize())))
			}
			return nil
		},
	}
}
