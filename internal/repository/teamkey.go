package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallio/recallio/internal/domain"
)

// TeamKeyRepository stores shared provider keys per team and resolves a
// user's team membership to its key.
type TeamKeyRepository struct {
	db dbtx
}

func NewTeamKeyRepository(pool *pgxpool.Pool) *TeamKeyRepository {
	return &TeamKeyRepository{db: pool}
}

// GetTeamKey returns the shared key for the user's team, or nil when the
// user has no team or the team has no key configured.
func (r *TeamKeyRepository) GetTeamKey(ctx context.Context, userID string) (*domain.TeamKey, error) {
	row := r.db.QueryRow(ctx,
		`SELECT tk.team_name, tk.api_key, tk.updated_at
		 FROM team_keys tk
		 JOIN users u ON u.team_name = tk.team_name
		 WHERE u.id = $1`,
		userID,
	)

	var key domain.TeamKey
	if err := row.Scan(&key.TeamName, &key.APIKey, &key.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &key, nil
}

// Set creates or replaces a team's shared key.
func (r *TeamKeyRepository) Set(ctx context.Context, teamName, apiKey string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO team_keys (team_name, api_key, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (team_name) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			updated_at = now()`,
		teamName, apiKey,
	)
	return err
}

// Remove deletes a team's shared key. Removing a missing key is not an
// error.
func (r *TeamKeyRepository) Remove(ctx context.Context, teamName string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM team_keys WHERE team_name = $1`, teamName)
	return err
}
