package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallio/recallio/internal/domain"
)

// ErrLedgerConflict is returned when a conditional deduct finds the balance
// below the requested amount at commit time.
var ErrLedgerConflict = errors.New("balance below requested deduction")

// CreditRepository is the credit ledger. Deduct is a single conditional
// UPDATE, so the decrement is atomic: concurrent requests cannot both pass
// a stale balance check and draw the account negative.
type CreditRepository struct {
	pool *pgxpool.Pool
}

func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{pool: pool}
}

func (r *CreditRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx,
		`SELECT balance FROM credit_accounts WHERE user_id = $1`,
		userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No account row yet means a zero balance, not an error.
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// Add grants credits, creating the account row on first grant, and records
// an audit event.
func (r *CreditRepository) Add(ctx context.Context, userID string, amount int, metadata string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var newBalance int
	err = tx.QueryRow(ctx,
		`INSERT INTO credit_accounts (user_id, balance, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET
			balance = credit_accounts.balance + EXCLUDED.balance,
			updated_at = now()
		 RETURNING balance`,
		userID, amount,
	).Scan(&newBalance)
	if err != nil {
		return 0, err
	}

	if err := insertCreditEvent(ctx, tx, userID, domain.CreditAction("grant"), amount, metadata); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Deduct removes amount credits if and only if the balance covers it,
// returning the new balance. ErrLedgerConflict means the balance was short.
func (r *CreditRepository) Deduct(ctx context.Context, userID string, action domain.CreditAction, amount int, metadata string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var newBalance int
	err = tx.QueryRow(ctx,
		`UPDATE credit_accounts
		 SET balance = balance - $2, updated_at = now()
		 WHERE user_id = $1 AND balance >= $2
		 RETURNING balance`,
		userID, amount,
	).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrLedgerConflict
		}
		return 0, err
	}

	if err := insertCreditEvent(ctx, tx, userID, action, -amount, metadata); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func insertCreditEvent(ctx context.Context, tx pgx.Tx, userID string, action domain.CreditAction, delta int, metadata string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO credit_events (id, user_id, action, delta, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), userID, string(action), delta, nullableString(metadata), time.Now().UTC(),
	)
	return err
}

// Events returns the most recent ledger entries for a user.
func (r *CreditRepository) Events(ctx context.Context, userID string, limit int) ([]*domain.CreditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, action, delta, COALESCE(metadata, ''), created_at
		 FROM credit_events
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.CreditEvent, 0)
	for rows.Next() {
		var e domain.CreditEvent
		var action string
		if err := rows.Scan(&e.ID, &e.UserID, &action, &e.Delta, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = domain.CreditAction(action)
		events = append(events, &e)
	}
	return events, rows.Err()
}
