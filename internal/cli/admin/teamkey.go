package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recallio/recallio/internal/repository"
)

func TeamKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teamkey",
		Short: "Manage shared team provider keys",
		Long:  "Set or remove the shared provider API key for a team",
	}

	cmd.AddCommand(TeamKeySetCmd())
	cmd.AddCommand(TeamKeyRemoveCmd())

	return cmd
}

func TeamKeySetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <team> <api-key>",
		Short: "Set a team's shared provider key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTeamKeySet(args[0], args[1])
		},
	}

	return cmd
}

func runTeamKeySet(teamName, apiKey string) error {
	ctx := context.Background()

	if apiKey == "" {
		return fmt.Errorf("api key must not be empty")
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.NewTeamKeyRepository(pool).Set(ctx, teamName, apiKey); err != nil {
		return fmt.Errorf("failed to set team key: %w", err)
	}

	fmt.Printf("Shared key set for team %q\n", teamName)
	return nil
}

func TeamKeyRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <team>",
		Short: "Remove a team's shared provider key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTeamKeyRemove(args[0])
		},
	}

	return cmd
}

func runTeamKeyRemove(teamName string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.NewTeamKeyRepository(pool).Remove(ctx, teamName); err != nil {
		return fmt.Errorf("failed to remove team key: %w", err)
	}

	fmt.Printf("Shared key removed for team %q\n", teamName)
	return nil
}
