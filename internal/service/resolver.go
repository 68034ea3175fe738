package service

import (
	"context"
	"fmt"
	"log"

	"github.com/recallio/recallio/internal/domain"
)

// CreditLedger is the external balance store. Deduct is an atomic
// conditional decrement: it succeeds and returns the new balance only when
// the account held at least amount credits, so two concurrent requests can
// never both draw the account below zero.
type CreditLedger interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	Deduct(ctx context.Context, userID string, action domain.CreditAction, amount int, metadata string) (int, error)
}

// TeamKeyStore resolves a user to their team's shared provider key.
// A nil result with nil error means the user has no team key.
type TeamKeyStore interface {
	GetTeamKey(ctx context.Context, userID string) (*domain.TeamKey, error)
}

// Resolution is the outcome of key resolution: which tier serves the
// request and, for the caller-funded tiers, the key itself. Cost and
// Balance are populated only in credits mode.
type Resolution struct {
	Source    domain.KeySource
	CallerKey string
	TeamName  string
	Cost      int
	Balance   int
}

// KeyResolver decides which API key and billing mode serves a request.
// Tiers are evaluated in strict priority order, terminal on first success:
// a caller-supplied key wins outright, then a team's shared key, then
// server-funded credits. Only the credits tier ever touches the ledger.
type KeyResolver struct {
	ledger       CreditLedger
	teams        TeamKeyStore
	hasServerKey bool
}

func NewKeyResolver(ledger CreditLedger, teams TeamKeyStore, hasServerKey bool) *KeyResolver {
	return &KeyResolver{
		ledger:       ledger,
		teams:        teams,
		hasServerKey: hasServerKey,
	}
}

// Resolve determines the key tier for a request, or rejects it before any
// provider call is made. In credits mode the balance is checked up front so
// the caller sees cost and balance in the rejection; the authoritative
// guard remains the ledger's conditional deduct.
func (r *KeyResolver) Resolve(ctx context.Context, userID, byokKey string, action domain.CreditAction) (*Resolution, error) {
	if byokKey != "" {
		return &Resolution{Source: domain.KeySourceBYOK, CallerKey: byokKey}, nil
	}

	if userID != "" && r.teams != nil {
		teamKey, err := r.teams.GetTeamKey(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up team key: %w", err)
		}
		if teamKey != nil {
			return &Resolution{
				Source:    domain.KeySourceTeam,
				CallerKey: teamKey.APIKey,
				TeamName:  teamKey.TeamName,
			}, nil
		}
	}

	if userID != "" && r.hasServerKey {
		cost, err := domain.CostOf(action)
		if err != nil {
			return nil, err
		}
		balance, err := r.ledger.GetBalance(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch credit balance: %w", err)
		}
		if balance < cost {
			return nil, domain.NewDomainError(domain.ErrCodeInsufficientCredits,
				fmt.Sprintf("insufficient credits: action %q costs %d, balance is %d", action, cost, balance))
		}
		return &Resolution{Source: domain.KeySourceCredits, Cost: cost, Balance: balance}, nil
	}

	return nil, domain.ErrNoUsableKey
}

// Settle deducts credits after a successful completion. It is a no-op for
// the BYOK and team tiers. A deduction failure is logged and swallowed: the
// artifact has already been generated and availability wins over strict
// accounting. Returns the balance to report to the caller.
func (r *KeyResolver) Settle(ctx context.Context, res *Resolution, userID string, action domain.CreditAction, metadata string) int {
	if res.Source != domain.KeySourceCredits {
		return 0
	}

	newBalance, err := r.ledger.Deduct(ctx, userID, action, res.Cost, metadata)
	if err != nil {
		log.Printf("credit deduction failed after successful completion (user: %s, action: %s): %v", userID, action, err)
		return res.Balance
	}
	return newBalance
}
