package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "modmail",
		Short: "Relay private messages to per-user ticket channels in a staff guild",
		Long: `modmail bridges private conversations with a bot account and ticket channels
inside a staff guild. Staff replies are relayed back to the user; staff manage
tickets and members with slash commands.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(registerCommandsCmd())
	rootCmd.AddCommand(hashPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
