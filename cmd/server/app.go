package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"apiresource/internal/config"
	"apiresource/internal/core/entity"
	"apiresource/internal/dispatcher"
	"apiresource/internal/domain"
	"apiresource/internal/domain/blog"
	v1 "apiresource/internal/infrastructure/http/v1"
	"apiresource/internal/infrastructure/http/v1/middleware"
	"apiresource/internal/infrastructure/metrics"
	"apiresource/internal/infrastructure/storage/memory"
	"apiresource/internal/infrastructure/storage/postgres"
	"apiresource/internal/metadata"
	"apiresource/internal/resource"
	"apiresource/internal/security"
	"apiresource/internal/serializer"
	"apiresource/pkg/logger"
)

// application holds the wired components of one server process.
type application struct {
	cfg *config.Config
	log *logger.Logger

	catalog  *entity.Catalog
	registry *resource.Registry
	resolver *metadata.Resolver

	store domain.Store
	pool  *postgres.Pool

	jwt        *security.JWTService
	metrics    *metrics.Metrics
	dispatcher *dispatcher.Dispatcher
}

// newResources builds the entity catalog and the resource registry of the
// blog domain. It needs no storage.
func newResources() (*entity.Catalog, *resource.Registry, error) {
	catalog, err := blog.Catalog()
	if err != nil {
		return nil, nil, fmt.Errorf("build catalog: %w", err)
	}
	reg := resource.NewRegistry(catalog)
	if err := blog.Register(reg); err != nil {
		return nil, nil, fmt.Errorf("register resources: %w", err)
	}
	return catalog, reg, nil
}

// openStore connects the configured storage driver.
func openStore(ctx context.Context, cfg *config.Config, catalog *entity.Catalog) (domain.Store, *postgres.Pool, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.Storage.DSN)
		if cfg.Storage.MaxConns > 0 {
			poolCfg.MaxConns = cfg.Storage.MaxConns
		}
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, nil, err
		}
		txOpts := postgres.DefaultTxOptions()
		txOpts.StatementTimeout = cfg.Storage.StatementTimeout
		return postgres.NewStore(pool, catalog, txOpts), pool, nil
	default:
		return memory.New(catalog), nil, nil
	}
}

func newApplication(ctx context.Context, cfg *config.Config, log *logger.Logger) (*application, error) {
	catalog, reg, err := newResources()
	if err != nil {
		return nil, err
	}

	store, pool, err := openStore(ctx, cfg, catalog)
	if err != nil {
		return nil, err
	}
	app := &application{
		cfg:      cfg,
		log:      log,
		catalog:  catalog,
		registry: reg,
		resolver: metadata.NewResolver(),
		store:    store,
		pool:     pool,
	}
	if mem, ok := store.(*memory.Store); ok {
		if cfg.Storage.Seed {
			n, err := blog.Seed(ctx, mem, catalog, time.Now())
			if err != nil {
				app.Close()
				return nil, fmt.Errorf("seed memory store: %w", err)
			}
			log.Infow("memory store seeded", "entities", n)
		}
	}

	access, err := security.NewAccessChecker(catalog)
	if err != nil {
		app.Close()
		return nil, err
	}
	if err := access.Compile(reg); err != nil {
		app.Close()
		return nil, fmt.Errorf("compile access expressions: %w", err)
	}

	serCfg := serializer.DefaultConfig()
	serCfg.BasePath = cfg.API.BasePath
	serCfg.ForceEntityProperties = cfg.API.ForceEntityProperties
	serCfg.MaxDepth = cfg.API.MaxDepth
	serCfg.CollectionFormat = cfg.API.CollectionFormat

	pagination := domain.DefaultPaginationConfig()
	pagination.ItemsPerPage = cfg.Pagination.ItemsPerPage
	pagination.MaxItemsPerPage = cfg.Pagination.MaxItemsPerPage
	pagination.ClientItemsPerPage = cfg.Pagination.ClientItemsPerPage
	serCfg.PageParameter = pagination.PageParameter

	ser := serializer.New(serCfg, app.resolver, reg, serializer.StoreReferences{Store: store})

	hooks := domain.NewHookRegistry()
	blog.RegisterHooks(hooks, nil)

	app.dispatcher = dispatcher.New(dispatcher.Config{
		Registry:   reg,
		Store:      store,
		Access:     access,
		Serializer: ser,
		Hooks:      hooks,
		Pagination: pagination,
		Logger:     log,
	})

	app.jwt = security.NewJWTService(app.jwtConfig())
	if cfg.Metrics.Enabled {
		app.metrics = metrics.New(cfg.Metrics.Namespace)
	}
	return app, nil
}

func (a *application) jwtConfig() security.JWTConfig {
	jwtCfg := security.DefaultJWTConfig(a.cfg.Auth.JWTSecret)
	if a.cfg.Auth.Issuer != "" {
		jwtCfg.Issuer = a.cfg.Auth.Issuer
	}
	jwtCfg.AccessTokenTTL = a.cfg.Auth.TokenTTL
	return jwtCfg
}

// handler returns the HTTP handler of the API.
func (a *application) handler() http.Handler {
	var validator middleware.JWTValidator
	if !a.cfg.Auth.Disabled {
		validator = a.jwt
	}

	var stats func() any
	if a.pool != nil {
		stats = func() any { return a.pool.Stats() }
	}

	router := v1.NewRouter(v1.RouterConfig{
		Dispatcher:       a.dispatcher,
		BasePath:         a.cfg.API.BasePath,
		MaxBodyBytes:     a.cfg.API.MaxBodyBytes,
		MetadataRegistry: metadata.NewRegistry(a.resolver, a.registry),
		Store:            a.store,
		StorageDriver:    a.cfg.Storage.Driver,
		PoolStats:        stats,
		Version:          version,
		Logger:           a.log,
		JWTValidator:     validator,
		Metrics:          a.metrics,
	})
	return v1.NewHandler(router, a.cfg.Server.Gzip)
}

// Close releases storage connections.
func (a *application) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
