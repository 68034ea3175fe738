package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recallio/recallio/internal/cli"
	"github.com/recallio/recallio/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "recalliod",
		Short: "Recallio daemon and admin CLI",
		Long:  "Recallio daemon for running the API server and managing users, credits, and team keys",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.UserCmd())
	rootCmd.AddCommand(admin.CreditsCmd())
	rootCmd.AddCommand(admin.TeamKeyCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
