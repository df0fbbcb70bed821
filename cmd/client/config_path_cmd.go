package main

import (
	"fmt"

	"github.com/openmined/gamebox/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newConfigPathCmd())
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-path",
		Short: "Print the resolved config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(cmd)
			if !utils.FileExists(path) {
				cmd.PrintErrln(gray.Render("(not created yet, run `gamebox init`)"))
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}
