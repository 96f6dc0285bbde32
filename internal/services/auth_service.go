package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"logima-backend/internal/auth"
	"logima-backend/internal/database"
	"logima-backend/internal/models"
)

// UserStore is implemented by *database.DatabaseClient.
type UserStore interface {
	CreateUser(ctx context.Context, email string, passwordHash sql.NullString) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Session holds the values written to the auth cookies.
type Session struct {
	User        *models.User
	AccessToken string
	CSRFToken   string
}

type AuthService struct {
	users     UserStore
	secretKey []byte
	tokenTTL  time.Duration
	logger    zerolog.Logger
}

func NewAuthService(users UserStore, secretKey string, tokenTTL time.Duration, logger zerolog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, sql.NullString{String: string(hash), Valid: true})
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, database.ErrConstraintViolation) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return user, nil
}

// Login verifies the password and issues a session. Unknown email and wrong password
// are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.PasswordHash.Valid {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.NewSession(user)
}

// FindOrCreateOAuthUser returns the user for a provider-verified email, creating an
// account without a password on first sign in.
func (s *AuthService) FindOrCreateOAuthUser(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	user, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user, err = s.users.CreateUser(ctx, email, sql.NullString{})
	if err != nil {
		if errors.Is(err, database.ErrConstraintViolation) {
			return s.users.GetUserByEmail(ctx, email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info().Str("user_id", user.ID.String()).Msg("user created from oauth sign in")
	return user, nil
}

func (s *AuthService) NewSession(user *models.User) (*Session, error) {
	token, err := auth.GenerateToken(user.ID.String(), s.secretKey, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	csrf, err := auth.NewCSRFToken()
	if err != nil {
		return nil, err
	}
	return &Session{User: user, AccessToken: token, CSRFToken: csrf}, nil
}

func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
