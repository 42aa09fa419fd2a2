package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// AuthResult is returned by register and login.
type AuthResult struct {
	User      domain.PublicUser
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows. It reads the store
// directly and never goes through the user cache.
type AuthService struct {
	users  repository.UserRepository
	hasher auth.Hasher
	tokens auth.TokenIssuer
	events events.Dispatcher
	logger *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Hasher     auth.Hasher
	Tokens     auth.TokenIssuer
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service. A missing hasher or token issuer is
// built from cfg.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	return &AuthService{
		users:  deps.UserRepo,
		hasher: hasher,
		tokens: tokens,
		events: deps.Dispatcher,
		logger: logger.Named("auth_service"),
	}
}

// Register creates a new account and signs a token for it.
func (s *AuthService) Register(ctx context.Context, input domain.NewUser) (*AuthResult, error) {
	if err := ensureEmailAvailable(ctx, s.users, input.Email, ""); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Phone:        input.Phone,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapStoreError("register user", input.Email, err)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	if s.events != nil {
		event := events.NewEvent(events.EventUserRegistered, user.ID, events.UserPayload{
			Name: user.Name, Email: user.Email, Active: user.Active,
		})
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}
	return result, nil
}

// ValidateUser checks credentials and returns the full record, hash included.
// Unknown email, wrong password and inactive account all yield Unauthorized.
func (s *AuthService) ValidateUser(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("find user by email: %w", err))
	}

	ok, err := s.hasher.Compare(password, user.PasswordHash)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("compare password: %w", err))
	}
	if !ok {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	if !user.Active {
		return nil, apperrors.NewUnauthorized("user account is inactive")
	}
	return user, nil
}

// Login validates credentials and signs a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.ValidateUser(ctx, email, password)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeUnauthorized) {
			s.logger.Info("login rejected", zap.String("email", email))
		}
		return nil, err
	}
	return s.issue(user)
}

// FindUserByID resolves a token subject. It returns (nil, nil) when the user does not exist.
func (s *AuthService) FindUserByID(ctx context.Context, id string) (*domain.PublicUser, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("find user: %w", err))
	}
	public := user.Public()
	return &public, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("sign token: %w", err))
	}
	return &AuthResult{User: user.Public(), Token: token, ExpiresAt: exp}, nil
}
