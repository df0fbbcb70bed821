package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/openmined/gamebox/internal/server/gate"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newHashPasswordCmd())
}

// newHashPasswordCmd prints a password_hash line for an identity record. The
// password is read from stdin so it stays out of shell history.
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin for an identity record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				return errors.New("empty password")
			}

			hash, err := gate.HashPassword(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "password_hash: %q\n", hash)
			return err
		},
	}
}
