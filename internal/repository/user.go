package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallio/recallio/internal/domain"
)

type UserRepository struct {
	db dbtx
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: pool}
}

// Create inserts a user with the hash of their access token. The raw token
// is never stored.
func (r *UserRepository) Create(ctx context.Context, u *domain.User, tokenHash string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, team_name, token_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, nullableString(u.TeamName), tokenHash, u.CreatedAt,
	)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, email, COALESCE(team_name, ''), created_at FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, email, COALESCE(team_name, ''), created_at FROM users WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

// GetByTokenHash resolves an access-token hash to its user.
func (r *UserRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, email, COALESCE(team_name, ''), created_at FROM users WHERE token_hash = $1`,
		tokenHash,
	)
	return scanUser(row)
}

// SetTeam assigns or clears a user's team membership.
func (r *UserRepository) SetTeam(ctx context.Context, userID, teamName string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET team_name = $2 WHERE id = $1`,
		userID, nullableString(teamName),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.TeamName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
