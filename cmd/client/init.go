package main

import (
	"errors"
	"fmt"

	"github.com/openmined/gamebox/internal/client/config"
	"github.com/openmined/gamebox/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var password string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the client config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(cmd)
			if utils.FileExists(path) && !force {
				existing, err := config.LoadFromFile(path)
				if err != nil {
					return err
				}
				cmd.Println("GameBox already initialized (use --force to overwrite)")
				printConfig(cmd, existing)
				return nil
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if password != "" {
				cfg.Password = password
			}
			if cfg.Password != "" && cfg.Username == "" {
				return errors.New("--password needs --user")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			if err := cfg.Save(); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			cmd.Println("GameBox initialized")
			printConfig(cmd, cfg)
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password for --user")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}

func printConfig(cmd *cobra.Command, cfg *config.Config) {
	user := cfg.Username
	if user == "" {
		user = gray.Render("(server default)")
	}
	cmd.Printf("Config Path: %s\n", green.Render(cfg.Path))
	cmd.Printf("Server:      %s\n", cyan.Render(cfg.ServerURL))
	cmd.Printf("Library:     %s\n", cyan.Render(cfg.LibraryDir))
	cmd.Printf("User:        %s\n", cyan.Render(user))
}
