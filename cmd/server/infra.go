package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"talentgate/internal/auth/service"
	"talentgate/internal/auth/session"
	sessionstore "talentgate/internal/auth/store/session"
	userstore "talentgate/internal/auth/store/user"
	"talentgate/internal/authz/resolver"
	"talentgate/internal/authz/store/membership"
	"talentgate/internal/authz/store/organization"
	"talentgate/internal/authz/store/ownership"
	"talentgate/internal/platform/config"
	"talentgate/internal/platform/database"
	"talentgate/internal/platform/health"
	redisclient "talentgate/internal/platform/redis"
	"talentgate/migrations"
)

// infrastructure holds the optional external connections. Either may be nil.
type infrastructure struct {
	db    *database.Pool
	redis *redisclient.Client
}

func openInfrastructure(ctx context.Context, cfg config.Server, reg prometheus.Registerer, log *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if db != nil {
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			db.Close() //nolint:errcheck // best-effort cleanup on init failure
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		log.Info("database connected and migrated")
	}
	infra.db = db

	rdb, err := redisclient.New(ctx, cfg.Redis, reg)
	if err != nil {
		infra.Close(log)
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		log.Info("redis connected")
	}
	infra.redis = rdb

	return infra, nil
}

// RegisterChecks adds a readiness probe per configured connection.
func (i *infrastructure) RegisterChecks(h *health.Handler) {
	if i.db != nil {
		h.RegisterCheck("postgres", i.db.Health)
	}
	if i.redis != nil {
		h.RegisterCheck("redis", i.redis.Health)
	}
}

func (i *infrastructure) Close(log *slog.Logger) {
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Error("closing redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Error("closing database", "error", err)
		}
	}
}

type membershipStore interface {
	service.MembershipStore
	resolver.MembershipRepository
}

type stores struct {
	users         service.UserStore
	sessions      session.Store
	organizations service.OrganizationStore
	memberships   membershipStore
	owners        resolver.OwnershipRepository
}

// buildStores uses Postgres for relational data when a database is configured
// and falls back to memory otherwise. Sessions follow SESSION_BACKEND.
func buildStores(cfg config.Server, infra *infrastructure) (*stores, error) {
	st := &stores{}
	if infra.db != nil {
		db := infra.db.DB()
		st.users = userstore.NewPostgres(db)
		st.organizations = organization.NewPostgres(db)
		st.memberships = membership.NewPostgres(db)
		st.owners = ownership.NewPostgres(db)
	} else {
		st.users = userstore.New()
		st.organizations = organization.NewInMemory()
		st.memberships = membership.NewInMemory()
		st.owners = ownership.NewInMemory()
	}

	switch cfg.SessionBackend {
	case config.BackendMemory:
		st.sessions = sessionstore.New()
	case config.BackendPostgres:
		if infra.db == nil {
			return nil, fmt.Errorf("session backend %q requires DATABASE_URL", cfg.SessionBackend)
		}
		st.sessions = sessionstore.NewPostgres(infra.db.DB())
	case config.BackendRedis:
		if infra.redis == nil {
			return nil, fmt.Errorf("session backend %q requires REDIS_URL", cfg.SessionBackend)
		}
		st.sessions = sessionstore.NewRedis(infra.redis.Client)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
	return st, nil
}
