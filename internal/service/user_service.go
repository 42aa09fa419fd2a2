package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/cache"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/observability"
	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// UserService manages user records with a cache-aside read path.
//
// Writes invalidate user:{id} and user:all without repopulating them; the
// next read misses and reloads from the store. Create is the one exception
// and seeds user:{id} with the record it just persisted.
type UserService struct {
	users   repository.UserRepository
	cache   cache.Cache
	hasher  auth.Hasher
	events  events.Dispatcher
	logger  *zap.Logger
	metrics *observability.Metrics
	ttl     time.Duration
}

// UserDependencies encapsulates collaborators for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Cache      cache.Cache
	Hasher     auth.Hasher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewUserService builds the service.
func NewUserService(cfg config.Config, deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	}
	return &UserService{
		users:   deps.UserRepo,
		cache:   deps.Cache,
		hasher:  hasher,
		events:  deps.Dispatcher,
		logger:  logger.Named("user_service"),
		metrics: deps.Metrics,
		ttl:     cfg.Cache.TTL(),
	}
}

// Create persists a new active user, invalidates user:all and seeds its
// cache entry. Both cache writes are attempted even if one fails.
func (s *UserService) Create(ctx context.Context, input domain.NewUser) (*domain.PublicUser, error) {
	if err := ensureEmailAvailable(ctx, s.users, input.Email, ""); err != nil {
		if apperrors.IsCode(err, apperrors.CodeConflict) {
			s.logger.Warn("user creation rejected: email exists", zap.String("email", input.Email))
		}
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
		return nil, mapStoreError("create user", input.Email, err)
	}

	public := user.Public()
	var cacheErr error
	if err := s.cache.Delete(ctx, userListKey); err != nil {
		cacheErr = fmt.Errorf("invalidate user list: %w", err)
	}
	if err := s.cache.Set(ctx, userKey(user.ID), public, s.ttl); err != nil {
		cacheErr = errors.Join(cacheErr, fmt.Errorf("cache user: %w", err))
	}
	if cacheErr != nil {
		return nil, apperrors.NewInternalError(cacheErr)
	}

	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	s.publish(ctx, events.NewEvent(events.EventUserCreated, user.ID, events.UserPayload{
		Name: user.Name, Email: user.Email, Active: user.Active,
	}))
	return &public, nil
}

// FindAll returns active users, newest first.
func (s *UserService) FindAll(ctx context.Context) ([]domain.PublicUser, error) {
	var cached []domain.PublicUser
	if s.lookup(ctx, userListKey, userListKey, &cached) {
		return cached, nil
	}

	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("list users: %w", err))
	}
	public := domain.PublicUsers(users)
	s.populate(ctx, userListKey, public)

	s.logger.Debug("users listed", zap.Int("count", len(public)))
	return public, nil
}

// FindByID returns one user, active or not.
func (s *UserService) FindByID(ctx context.Context, id string) (*domain.PublicUser, error) {
	key := userKey(id)
	var cached domain.PublicUser
	if s.lookup(ctx, key, "user:{id}", &cached) {
		return &cached, nil
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError("find user", "", err)
	}
	public := user.Public()
	s.populate(ctx, key, public)
	return &public, nil
}

// Update applies a partial patch and invalidates the affected cache entries.
func (s *UserService) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.PublicUser, error) {
	email := ""
	if patch.Email != nil {
		email = *patch.Email
		if err := ensureEmailAvailable(ctx, s.users, email, id); err != nil {
			return nil, err
		}
	}

	user, err := s.users.Update(ctx, id, patch)
	if err != nil {
		return nil, mapStoreError("update user", email, err)
	}

	if err := s.invalidate(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("user updated", zap.String("user_id", id), zap.Strings("fields", patchFields(patch)))
	s.publish(ctx, events.NewEvent(events.EventUserUpdated, id, events.UserUpdatedPayload{Fields: patchFields(patch)}))
	public := user.Public()
	return &public, nil
}

// Delete soft-deletes an active user. Deleting twice reports NotFound.
func (s *UserService) Delete(ctx context.Context, id string) error {
	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("delete user: %w", err))
	}
	if !deleted {
		return apperrors.NewNotFound("user", nil)
	}

	if err := s.invalidate(ctx, id); err != nil {
		return err
	}

	s.logger.Info("user deactivated", zap.String("user_id", id))
	s.publish(ctx, events.NewEvent(events.EventUserDeactivated, id, nil))
	return nil
}

// lookup reads a cached value. Cache failures are logged and reported as a
// miss so the caller falls through to the store.
func (s *UserService) lookup(ctx context.Context, key, family string, dest any) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	switch {
	case err != nil:
		s.metrics.RecordCache(family, observability.CacheError)
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	case hit:
		s.metrics.RecordCache(family, observability.CacheHit)
		s.logger.Debug("cache hit", zap.String("key", key))
		return true
	default:
		s.metrics.RecordCache(family, observability.CacheMiss)
		s.logger.Debug("cache miss", zap.String("key", key))
		return false
	}
}

// populate fills the cache after a read; failures only cost a future miss.
func (s *UserService) populate(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("cache populate failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *UserService) invalidate(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, userKey(id), userListKey); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("invalidate user %s: %w", id, err))
	}
	return nil
}

func (s *UserService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func patchFields(p domain.UserPatch) []string {
	fields := make([]string, 0, 4)
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Email != nil {
		fields = append(fields, "email")
	}
	if p.Phone != nil {
		fields = append(fields, "phone")
	}
	if p.Active != nil {
		fields = append(fields, "active")
	}
	return fields
}
