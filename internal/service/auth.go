package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/recallio/recallio/internal/domain"
)

// Access tokens look like "rcl_<64 hex chars>". Only their SHA-256 hash is
// stored.
var tokenPattern = regexp.MustCompile(`^rcl_[0-9a-f]{64}$`)

// UserStore defines the repository interface for auth operations.
type UserStore interface {
	Create(ctx context.Context, u *domain.User, tokenHash string) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)
}

// AuthService issues and validates access tokens.
type AuthService struct {
	users UserStore
}

func NewAuthService(users UserStore) *AuthService {
	return &AuthService{users: users}
}

// IsValidToken reports whether the token matches the expected format.
func IsValidToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// HashToken returns the hex SHA-256 of a raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateToken creates a fresh random access token.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return "rcl_" + hex.EncodeToString(buf), nil
}

// ValidateToken resolves a bearer token to a user ID.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (string, error) {
	if !IsValidToken(token) {
		return "", domain.ErrInvalidToken
	}
	user, err := s.users.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return "", domain.ErrInvalidToken
	}
	return user.ID, nil
}

// CreateUser registers a user and returns the raw token exactly once.
func (s *AuthService) CreateUser(ctx context.Context, email, teamName string) (*domain.User, string, error) {
	user := &domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		TeamName:  teamName,
		CreatedAt: time.Now().UTC(),
	}
	if err := user.Validate(); err != nil {
		return nil, "", err
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	if err := s.users.Create(ctx, user, HashToken(token)); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}
	return user, token, nil
}

// CreateUserWithToken registers a user under a caller-supplied token. Used
// by the bootstrap path.
func (s *AuthService) CreateUserWithToken(ctx context.Context, email, teamName, token string) (*domain.User, error) {
	if !IsValidToken(token) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid token format (expected 'rcl_<64 hex chars>')")
	}

	user := &domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		TeamName:  teamName,
		CreatedAt: time.Now().UTC(),
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user, HashToken(token)); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
