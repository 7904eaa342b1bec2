package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mc-fdc-dev/modmail/internal/config"
	"github.com/mc-fdc-dev/modmail/internal/discord"
)

func registerCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register-commands",
		Short: "Overwrite the global slash command set and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			session, err := discord.NewSession(cfg.Discord.Token)
			if err != nil {
				return err
			}
			registered, err := discord.NewClient(session).RegisterCommands(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range registered {
				fmt.Fprintf(cmd.OutOrStdout(), "/%s\t%s\n", c.Name, c.ID)
			}
			return nil
		},
	}
}
