// Package service contains the business rules of the catalog.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates input, enforces rules, orchestrates
//	Repository (DB) → reads/writes SQLite
//
// Services take plain Go values and return domain errors from apperror; they
// know nothing about HTTP. The handler package maps those errors to status
// codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/openworld/internal/apperror"
	"github.com/sakif/openworld/internal/auth"
	"github.com/sakif/openworld/internal/metrics"
	"github.com/sakif/openworld/internal/model"
	"github.com/sakif/openworld/internal/repository"
)

// Client-facing messages. Login failures use one message for both an unknown
// email and a wrong password so responses cannot be used to probe which
// addresses have accounts.
const (
	MsgCredentialsRequired = "Email and password are required"
	MsgEmailExists         = "Email already exists"
	MsgInvalidCredentials  = "Invalid credentials"
	MsgPasswordTooLong     = "Password must be 72 bytes or fewer"
)

// AuthService handles registration, login and token issuance.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles a user record with a freshly issued token.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account.
//
// Duplicate detection is left to the store's UNIQUE constraint rather than a
// lookup before the insert, so two simultaneous registrations for one
// address cannot both succeed.
func (s *AuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperror.ValidationFailed("email", MsgCredentialsRequired)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", MsgPasswordTooLong)
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{Email: email, Password: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("email", MsgEmailExists)
		}
		s.logger.Error("failed to create user", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	metrics.UsersRegistered.Inc()
	s.logger.Info("user registered", slog.Int64("userID", user.ID))

	return user, nil
}

// Login checks an email/password pair and returns a signed token.
//
// Unknown email, wrong password, and an account without a password (GitHub
// sign-in only) all produce the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(MsgInvalidCredentials)
		}
		s.logger.Error("failed to look up user for login", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.Password, password); err != nil {
		return nil, apperror.Unauthorized(MsgInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// SignInGitHub finds or creates the catalog account for a GitHub profile and
// issues a token for it.
//
// Accounts are matched on SignInEmail, so a person who registered with a
// password and later signs in with GitHub (same email) gets the same user id.
// New accounts are stored with model.NoPassword.
func (s *AuthService) SignInGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}
	email := ghUser.SignInEmail()

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{Email: email, Password: model.NoPassword}
		if err := s.users.CreateUser(ctx, user); err != nil {
			// Lost a race with a concurrent first sign-in; the row exists now.
			if !errors.Is(err, apperror.ErrConflict) {
				return nil, fmt.Errorf("service/auth: creating GitHub user: %w", err)
			}
			if user, err = s.users.GetUserByEmail(ctx, email); err != nil {
				return nil, fmt.Errorf("service/auth: reloading GitHub user: %w", err)
			}
		} else {
			metrics.UsersRegistered.Inc()
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up GitHub user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", ghUser.Login),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// Me loads the account behind an authenticated identity. A token whose user
// no longer exists yields apperror.ErrNotFound.
func (s *AuthService) Me(ctx context.Context, identity *auth.Identity) (*model.User, error) {
	if identity == nil {
		return nil, apperror.Unauthorized(auth.MsgTokenRequired)
	}
	user, err := s.users.GetUserByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: loading user %d: %w", identity.UserID, err)
	}
	return user, nil
}

// VerifyToken resolves a bearer token to the identity inside it. It does not
// consult the store.
func (s *AuthService) VerifyToken(token string) (*auth.Identity, error) {
	identity, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return identity, nil
}
