package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"continuity.org/internal/analytics"
	"continuity.org/internal/backend"
	"continuity.org/internal/bia"
	"continuity.org/internal/config"
	"continuity.org/internal/department"
	"continuity.org/internal/httpapi"
	"continuity.org/internal/identity"
	"continuity.org/internal/notify"
	"continuity.org/internal/obs"
	"continuity.org/internal/store/pg"
	"continuity.org/internal/store/redis"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := obs.NewLogger(obs.LogConfigFromEnv())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	restore := obs.SetLogger(logger)
	defer restore()
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := backend.New(cfg.BackendURL, cfg.APIKey,
		backend.WithRetry(3, cfg.RetryDelay),
		backend.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}
	authClient := backend.NewAuthClient(client, cfg.JWTSecret)

	// Data stores: PostgreSQL when a DSN is configured, the hosted backend otherwise.
	var (
		identityStore identity.Store   = backend.NewIdentityStore(client)
		processes     bia.Repository   = backend.NewProcessRepository(client)
		departments   department.Store = backend.NewDepartmentStore(client)
		caller        analytics.Caller = client
		ready         httpapi.ReadyProbe
	)
	if cfg.PGDSN != "" {
		store, err := pg.Open(cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer func() { _ = store.Close() }()
		identityStore, processes, departments, caller = store, store, store, store
		ready = httpapi.ReadyProbe{DB: store.DB()}
		logger.Info("using postgres stores")
	}

	cache := identity.Cache(identity.NewMemoryCache())
	if cfg.RedisAddr != "" {
		rc, rdb, err := redis.Open(ctx, cfg.RedisAddr, "", 0)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		cache = rc
		logger.Info("using redis identity cache", zap.String("addr", cfg.RedisAddr))
	}

	resolver, err := identity.NewResolver(identityStore,
		identity.WithRefresher(authClient),
		identity.WithResolverLogger(logger))
	if err != nil {
		return err
	}
	manager, err := identity.NewManager(resolver,
		identity.WithCache(cache),
		identity.WithSignOuter(authClient))
	if err != nil {
		return err
	}
	unsubscribe := manager.Subscribe(func(evt identity.Event) {
		if evt.Err != nil {
			logger.Warn("identity event", zap.String("kind", string(evt.Kind)), zap.Error(evt.Err))
			return
		}
		logger.Debug("identity event", zap.String("kind", string(evt.Kind)))
	})
	defer unsubscribe()

	hub := notify.NewHub()
	biaService, err := bia.NewService(processes,
		bia.WithNotifier(notify.Multi(hub, notify.LogSink{Logger: logger})),
		bia.WithServiceLogger(logger))
	if err != nil {
		return err
	}

	api := httpapi.New(httpapi.Deps{
		Sessions:    authClient,
		Identity:    manager,
		BIA:         biaService,
		Analytics:   analytics.NewService(caller),
		Departments: department.NewLoader(departments, 4),
		Hub:         hub,
		Ready:       ready,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	assessment := httpapi.NewGRPCServer(ready, version)
	healthSrv := assessment.Register(grpcSrv)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	logger.Info("starting continuity-api",
		zap.String("version", version),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("grpc_addr", cfg.GRPCAddr))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			assessment.UpdateHealth(gctx, healthSrv)
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		healthSrv.Shutdown()
		grpcSrv.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
