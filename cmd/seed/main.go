package main

import (
	"context"
	"errors"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/observability"
	"github.com/spec-kit/user-service/internal/persistence"
	"github.com/spec-kit/user-service/internal/repository"
)

const seedPassword = "123456"

type seedUser struct {
	name   string
	email  string
	phone  string
	active bool
}

var seedUsers = []seedUser{
	{name: "Admin User", email: "admin@example.com", phone: "+1234567890", active: true},
	{name: "John Doe", email: "john.doe@example.com", phone: "+1234567891", active: true},
	{name: "Jane Smith", email: "jane.smith@example.com", phone: "+1234567892", active: false},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}

	if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	hash, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost).Hash(seedPassword)
	if err != nil {
		logger.Fatal("failed to hash seed password", zap.Error(err))
	}

	users := repository.NewUserRepository(pg.PoolHandle())
	created := 0
	for _, s := range seedUsers {
		phone := s.phone
		user := &domain.User{Name: s.name, Email: s.email, PasswordHash: hash, Phone: &phone, Active: s.active}
		err := users.Create(ctx, user)
		switch {
		case err == nil:
			created++
			logger.Info("seeded user", zap.String("email", s.email), zap.Bool("active", s.active))
		case errors.Is(err, repository.ErrEmailTaken):
			logger.Info("user already present", zap.String("email", s.email))
		default:
			logger.Fatal("failed to seed user", zap.String("email", s.email), zap.Error(err))
		}
	}
	logger.Info("seed complete", zap.Int("created", created))
}
