package main

import (
	"fmt"

	"github.com/openmined/gamebox/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print GameBox version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.ShortWithApp())
			if err != nil {
				return err
			}
			if detailed, _ := cmd.Flags().GetBool("detailed"); detailed {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), version.Detailed())
			}
			return err
		},
	}
	cmd.Flags().BoolP("detailed", "d", false, "Include revision, toolchain and build date")
	return cmd
}
