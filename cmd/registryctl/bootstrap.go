package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/entity-registry/modules"
	"github.com/iota-uz/entity-registry/modules/registry/infrastructure/persistence"
	"github.com/iota-uz/entity-registry/modules/registry/services"
	"github.com/iota-uz/entity-registry/pkg/application"
	"github.com/iota-uz/entity-registry/pkg/composables"
	"github.com/iota-uz/entity-registry/pkg/configuration"
	"github.com/iota-uz/entity-registry/pkg/eventbus"
	"github.com/iota-uz/entity-registry/pkg/logging"
)

type runtime struct {
	conf *configuration.Configuration
	pool *pgxpool.Pool
	app  application.Application
}

func connectDB(ctx context.Context, conf *configuration.Configuration) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("db connect failed: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("db ping failed: %w", err))
	}
	return pool, nil
}

// bootstrap connects to the database and registers the built-in modules. The
// returned context carries the pool and the configured lock timeout.
func bootstrap(ctx context.Context) (*runtime, context.Context, error) {
	conf := configuration.Use()
	pool, err := connectDB(ctx, conf)
	if err != nil {
		return nil, nil, err
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(conf.Logger()),
		Logger:   conf.Logger(),
	})
	app.RegisterShutdown(func(context.Context) error {
		pool.Close()
		return nil
	})
	if conf.OpenTelemetry.Enabled {
		flush := logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
		app.RegisterShutdown(func(context.Context) error {
			flush()
			return nil
		})
	}
	if err := modules.Load(app, modules.BuiltInModules(conf)...); err != nil {
		_ = app.Shutdown(ctx)
		return nil, nil, withCode(exitUsage, err)
	}

	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithLockTimeout(ctx, conf.Database.LockTimeout)
	return &runtime{conf: conf, pool: pool, app: app}, ctx, nil
}

func (r *runtime) close() {
	_ = r.app.Shutdown(context.Background())
}

func (r *runtime) changeRequests() *services.ChangeRequestService {
	return r.app.Service(services.ChangeRequestService{}).(*services.ChangeRequestService)
}

func (r *runtime) entities() *persistence.EntityRepository {
	return r.app.Service(persistence.EntityRepository{}).(*persistence.EntityRepository)
}

func (r *runtime) identities() *persistence.IdentityRepository {
	return r.app.Service(persistence.IdentityRepository{}).(*persistence.IdentityRepository)
}

func (r *runtime) auditTrail() *persistence.AuditRepository {
	return r.app.Service(persistence.AuditRepository{}).(*persistence.AuditRepository)
}
