package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edgecode/snippetd/internal/apperror"
	"github.com/edgecode/snippetd/internal/auth"
	"github.com/edgecode/snippetd/internal/model"
	"github.com/edgecode/snippetd/internal/repository"
)

// AuthService signs admins in. Two ways exist: a local password login
// for the bootstrap admin account, and GitHub OAuth. Both end in the
// same place, a JWT session cookie carrying the internal user ID.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

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

// AuthResult bundles the user and their freshly issued session token so
// the handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginPassword authenticates a local account. Wrong login and wrong
// password produce the same error so the response doesn't reveal which
// accounts exist.
func (s *AuthService) LoginPassword(ctx context.Context, login, password string) (*AuthResult, error) {
	if login == "" || password == "" {
		return nil, apperror.Unauthorized("invalid login or password")
	}

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid login or password")
		}
		return nil, fmt.Errorf("service/auth: looking up user %q: %w", login, err)
	}

	if user.PasswordHash == "" {
		// OAuth-only account; it has no password to check.
		return nil, apperror.Unauthorized("invalid login or password")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Warn("failed password login", slog.String("login", login))
		return nil, apperror.Unauthorized("invalid login or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via password", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// LoginGitHub handles the OAuth callback. First sign-in creates the
// account; later sign-ins refresh login, email and avatar from GitHub.
func (s *AuthService) LoginGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.GetUserByGitHubID(ctx, ghUser.ID)
	switch {
	case err == nil:
		user.Login = ghUser.Login
		user.Email = ghUser.Email
		user.AvatarURL = ghUser.AvatarURL
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: refreshing user profile: %w", err)
		}
	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{
			GitHubID:  ghUser.ID,
			Login:     ghUser.Login,
			Email:     ghUser.Email,
			AvatarURL: ghUser.AvatarURL,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating user (githubID=%d): %w", ghUser.ID, err)
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up user (githubID=%d): %w", ghUser.ID, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// EnsureAdmin creates or updates the bootstrap admin account from
// configuration. Called once at startup when ADMIN_PASSWORD is set, so a
// fresh deployment has a way in before OAuth is configured.
func (s *AuthService) EnsureAdmin(ctx context.Context, login, password string) error {
	if login == "" || password == "" {
		return fmt.Errorf("service/auth: admin login and password must not be empty")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("service/auth: hashing admin password: %w", err)
	}

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return fmt.Errorf("service/auth: looking up admin account: %w", err)
		}
		user = &model.User{Login: login, PasswordHash: hash}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("service/auth: creating admin account: %w", err)
		}
		s.logger.Info("admin account created", slog.String("login", login))
		return nil
	}

	user.PasswordHash = hash
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("service/auth: updating admin password: %w", err)
	}
	return nil
}

// GetUserByID backs the /api/me handler, after the middleware has
// validated the session and extracted the ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}
	return s.users.GetUserByID(ctx, id)
}
