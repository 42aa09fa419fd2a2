package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/cache"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

type mockTokens struct {
	mock.Mock
}

func (m *mockTokens) GenerateToken(subjectID, email string) (string, time.Time, error) {
	args := m.Called(subjectID, email)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func newAuthService(store *memStore) (*AuthService, *auth.TokenManager) {
	tm := auth.NewTokenManager("test-secret", 15)
	svc := NewAuthService(testConfig(), AuthDependencies{
		UserRepo: store,
		Hasher:   testHasher(),
		Tokens:   tm,
	})
	return svc, tm
}

func TestAuthScenario(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc, tm := newAuthService(store)
	users := newUserService(store, cache.NewMemoryCache(time.Minute))

	registered, err := svc.Register(ctx, domain.NewUser{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", registered.User.Email)
	assert.NotEmpty(t, registered.Token)
	raw, err := json.Marshal(registered.User)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")

	claims, err := tm.ParseToken(registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)

	_, err = svc.Register(ctx, domain.NewUser{Name: "A", Email: "a@x.com", Password: "other"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	_, err = svc.Login(ctx, "a@x.com", "wrong")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))

	loggedIn, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)
	assert.NotEmpty(t, loggedIn.Token)

	require.NoError(t, users.Delete(ctx, registered.User.ID))
	_, err = svc.Login(ctx, "a@x.com", "secret1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
}

func TestValidateUser(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc, _ := newAuthService(store)
	_, err := svc.Register(ctx, domain.NewUser{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	t.Run("returns full record", func(t *testing.T) {
		user, err := svc.ValidateUser(ctx, "a@x.com", "secret1")
		require.NoError(t, err)
		assert.NotEmpty(t, user.PasswordHash)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.ValidateUser(ctx, "nobody@x.com", "secret1")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	})

	t.Run("empty email", func(t *testing.T) {
		_, err := svc.ValidateUser(ctx, "", "secret1")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	})

	t.Run("email match is exact", func(t *testing.T) {
		_, err := svc.ValidateUser(ctx, "A@X.COM", "secret1")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	})

	t.Run("store failure is not unauthorized", func(t *testing.T) {
		broken := newMemStore()
		broken.failWith = errors.New("db down")
		brokenSvc, _ := newAuthService(broken)

		_, err := brokenSvc.ValidateUser(ctx, "a@x.com", "secret1")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInternal))
	})
}

func TestLoginPropertyAcrossPasswords(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc, _ := newAuthService(store)

	accounts := map[string]string{
		"one@x.com":   "secret1",
		"two@x.com":   "p@ss w0rd",
		"three@x.com": "ünïcødé-pass",
	}
	for email, pw := range accounts {
		_, err := svc.Register(ctx, domain.NewUser{Name: "n", Email: email, Password: pw})
		require.NoError(t, err)
	}

	for email, pw := range accounts {
		_, err := svc.Login(ctx, email, pw)
		assert.NoError(t, err, email)

		for _, wrong := range []string{"", pw + "x", "secret2"} {
			_, err := svc.Login(ctx, email, wrong)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized), "%s / %q", email, wrong)
		}
	}
}

func TestRegisterConflictWithInactiveUser(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.Create(ctx, &domain.User{Name: "old", Email: "a@x.com", PasswordHash: "h", Active: false}))
	svc, _ := newAuthService(store)

	_, err := svc.Register(ctx, domain.NewUser{Name: "A", Email: "a@x.com", Password: "secret1"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestRegisterRaceMapsConstraintToConflict(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc, _ := newAuthService(store)
	_, err := svc.Register(ctx, domain.NewUser{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	store.skipEmailLookup = true
	_, err = svc.Register(ctx, domain.NewUser{Name: "B", Email: "a@x.com", Password: "secret1"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestRegisterSignsAfterPersisting(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	tokens := new(mockTokens)
	tokens.On("GenerateToken", mock.AnythingOfType("string"), "a@x.com").
		Run(func(args mock.Arguments) {
			_, err := store.FindByID(ctx, args.String(0))
			assert.NoError(t, err, "user must be stored before the token is signed")
		}).
		Return("signed", time.Now().Add(time.Hour), nil).Once()

	svc := NewAuthService(testConfig(), AuthDependencies{UserRepo: store, Hasher: testHasher(), Tokens: tokens})
	result, err := svc.Register(ctx, domain.NewUser{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "signed", result.Token)
	tokens.AssertExpectations(t)
}

func TestRegisterTokenFailure(t *testing.T) {
	tokens := new(mockTokens)
	tokens.On("GenerateToken", mock.Anything, mock.Anything).Return("", time.Time{}, errors.New("no key"))
	svc := NewAuthService(testConfig(), AuthDependencies{UserRepo: newMemStore(), Hasher: testHasher(), Tokens: tokens})

	_, err := svc.Register(context.Background(), domain.NewUser{Name: "A", Email: "a@x.com", Password: "secret1"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInternal))
}

func TestRegisterPublishesEvent(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	var got events.Event
	dispatcher.Subscribe(events.EventUserRegistered, func(_ context.Context, e events.Event) error {
		got = e
		return nil
	})
	svc := NewAuthService(testConfig(), AuthDependencies{UserRepo: newMemStore(), Hasher: testHasher(), Dispatcher: dispatcher})

	result, err := svc.Register(context.Background(), domain.NewUser{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, got.UserID)
	assert.Equal(t, "a@x.com", got.Payload.(events.UserPayload).Email)
}

func TestFindUserByID(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc, _ := newAuthService(store)
	registered, err := svc.Register(ctx, domain.NewUser{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	user, err := svc.FindUserByID(ctx, registered.User.ID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "a@x.com", user.Email)

	user, err = svc.FindUserByID(ctx, "2f4c1c5e-8a8c-4a36-9b7e-0d3f3b0f2a11")
	require.NoError(t, err)
	assert.Nil(t, user)
}
