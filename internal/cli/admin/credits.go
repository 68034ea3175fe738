package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/recallio/recallio/internal/repository"
)

func CreditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Manage credit balances",
		Long:  "Grant credits and inspect balances and ledger history",
	}

	cmd.AddCommand(CreditsGrantCmd())
	cmd.AddCommand(CreditsBalanceCmd())

	return cmd
}

func CreditsGrantCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "grant <email> <amount>",
		Short: "Grant credits to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[1])
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive integer, got %q", args[1])
			}
			return runCreditsGrant(args[0], amount, note)
		},
	}

	cmd.Flags().StringVar(&note, "note", "admin grant", "Metadata recorded on the ledger event")

	return cmd
}

func runCreditsGrant(email string, amount int, note string) error {
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

	balance, err := repository.NewCreditRepository(pool).Add(ctx, user.ID, amount, note)
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}

	fmt.Printf("Granted %d credits to %s (new balance: %d)\n", amount, email, balance)
	return nil
}

func CreditsBalanceCmd() *cobra.Command {
	var events int

	cmd := &cobra.Command{
		Use:   "balance <email>",
		Short: "Show a user's credit balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runCreditsBalance(args[0], events, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&events, "events", "n", 0, "Also show the N most recent ledger events")

	return cmd
}

func runCreditsBalance(email string, eventCount int, outputFormat string) error {
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

	creditRepo := repository.NewCreditRepository(pool)
	balance, err := creditRepo.GetBalance(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch balance: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"email":   user.Email,
			"balance": balance,
		}
		if eventCount > 0 {
			events, err := creditRepo.Events(ctx, user.ID, eventCount)
			if err != nil {
				return fmt.Errorf("failed to fetch events: %w", err)
			}
			data["events"] = events
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Printf("%s: %d credits\n", user.Email, balance)
	if eventCount > 0 {
		events, err := creditRepo.Events(ctx, user.ID, eventCount)
		if err != nil {
			return fmt.Errorf("failed to fetch events: %w", err)
		}
		for _, e := range events {
			fmt.Printf("  %s  %-16s %+d  %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.Delta, e.Metadata)
		}
	}
	return nil
}
