package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/recallio/recallio/internal/config"
	"github.com/recallio/recallio/internal/repository"
	"github.com/recallio/recallio/internal/service"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
		Long:  "Create users and manage team membership",
	}

	cmd.AddCommand(UserCreateCmd())
	cmd.AddCommand(UserGetCmd())
	cmd.AddCommand(UserSetTeamCmd())

	return cmd
}

func UserCreateCmd() *cobra.Command {
	var teamName string

	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a new user",
		Long:  "Create a new user and print their access token (shown only once)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runUserCreate(args[0], teamName, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().StringVar(&teamName, "team", "", "Team to assign the user to")

	return cmd
}

func runUserCreate(email, teamName, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	authSvc := service.NewAuthService(repository.NewUserRepository(pool))

	user, token, err := authSvc.CreateUser(ctx, email, teamName)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         user.ID,
			"email":      user.Email,
			"team_name":  user.TeamName,
			"token":      token,
			"created_at": user.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("User created: %s (%s)\n", user.Email, user.ID)
		fmt.Printf("Access token (save it now, it is not stored): %s\n", token)
	}

	return nil
}

func UserGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <email>",
		Short: "Look up a user by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runUserGet(args[0], outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runUserGet(email, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	user, err := repository.NewUserRepository(pool).GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         user.ID,
			"email":      user.Email,
			"team_name":  user.TeamName,
			"created_at": user.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("%s: %s (team: %s, created: %s)\n", user.ID, user.Email, user.TeamName, user.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}

func UserSetTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-team <email> <team>",
		Short: "Assign a user to a team",
		Long:  "Assign a user to a team so they resolve to the team's shared provider key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserSetTeam(args[0], args[1])
		},
	}

	return cmd
}

func runUserSetTeam(email, teamName string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	user, err := userRepo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if err := userRepo.SetTeam(ctx, user.ID, teamName); err != nil {
		return fmt.Errorf("failed to set team: %w", err)
	}

	fmt.Printf("User %s assigned to team %q\n", email, teamName)
	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
