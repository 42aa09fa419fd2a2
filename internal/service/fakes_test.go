package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/cache"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/repository"
)

// memStore is an in-memory repository.UserRepository that enforces the
// unique email constraint and counts calls per method.
type memStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	calls map[string]int
	clock time.Time

	// skipEmailLookup makes FindByEmail always miss, simulating a concurrent
	// writer that commits between the pre-check and the insert.
	skipEmailLookup bool
	failWith        error
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*domain.User),
		calls: make(map[string]int),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var _ repository.UserRepository = (*memStore)(nil)

func (s *memStore) called(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) emailOwner(email string) *domain.User {
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (s *memStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Create"]++
	if s.failWith != nil {
		return s.failWith
	}
	if s.emailOwner(user.Email) != nil {
		return repository.ErrEmailTaken
	}
	user.ID = uuid.NewString()
	user.CreatedAt = s.tick()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *memStore) FindAll(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindAll"]++
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Active {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindByID"]++
	if s.failWith != nil {
		return nil, s.failWith
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindByEmail"]++
	if s.failWith != nil {
		return nil, s.failWith
	}
	if s.skipEmailLookup || email == "" {
		return nil, repository.ErrNotFound
	}
	u := s.emailOwner(email)
	if u == nil {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) Update(_ context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Update"]++
	if s.failWith != nil {
		return nil, s.failWith
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Email != nil {
		if owner := s.emailOwner(*patch.Email); owner != nil && owner.ID != id {
			return nil, repository.ErrEmailTaken
		}
		u.Email = *patch.Email
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Phone != nil {
		u.Phone = patch.Phone
	}
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	u.UpdatedAt = s.tick()
	cp := *u
	return &cp, nil
}

func (s *memStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Delete"]++
	if s.failWith != nil {
		return false, s.failWith
	}
	u, ok := s.users[id]
	if !ok || !u.Active {
		return false, nil
	}
	u.Active = false
	u.UpdatedAt = s.tick()
	return true, nil
}

// mockCache is a testify mock of cache.Cache for failure injection.
type mockCache struct {
	mock.Mock
}

var _ cache.Cache = (*mockCache)(nil)

func (m *mockCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	args := m.Called(ctx, key, dest)
	return args.Bool(0), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *mockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *mockCache) DeletePattern(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

func testConfig() config.Config {
	return config.Config{
		Cache: config.CacheConfig{TTLSeconds: 300},
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 15,
			BcryptCost:            bcrypt.MinCost,
		},
	}
}

func testHasher() auth.Hasher {
	return auth.NewBcryptHasher(bcrypt.MinCost)
}

func newUserService(store repository.UserRepository, c cache.Cache) *UserService {
	return NewUserService(testConfig(), UserDependencies{
		UserRepo: store,
		Cache:    c,
		Hasher:   testHasher(),
		Logger:   zap.NewNop(),
	})
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
