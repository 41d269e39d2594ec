package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xela07ax/reflections-auth/internal/audit"
	"github.com/xela07ax/reflections-auth/internal/console/handler"
	"github.com/xela07ax/reflections-auth/internal/console/server"
	"github.com/xela07ax/reflections-auth/internal/console/service"
	"github.com/xela07ax/reflections-auth/internal/infra"
	"github.com/xela07ax/reflections-auth/internal/infra/auth"
	"github.com/xela07ax/reflections-auth/internal/repository"
	"github.com/xela07ax/reflections-auth/internal/repository/mongodb"
	"github.com/xela07ax/reflections-auth/internal/repository/postgres"
)

// auditRepo — хранилище аудита: запись пачками и выборка для админки
type auditRepo interface {
	audit.Storage
	service.AuditLogProvider
}

// storage — выбранный драйвер хранилища и функция его закрытия
type storage struct {
	users repository.UserStore
	audit auditRepo
	close func(ctx context.Context) error
}

func openStorage(ctx context.Context, cfg infra.DatabaseConfig, logger *zap.Logger) (*storage, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &storage{
			users: postgres.NewUserRepo(db),
			audit: postgres.NewAuditRepo(db),
			close: func(context.Context) error { return db.Close() },
		}, nil

	case "mongo":
		cli, err := mongodb.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		users, err := mongodb.NewUserRepo(ctx, cli, cfg.Name)
		if err != nil {
			_ = cli.Disconnect(ctx)
			return nil, err
		}
		return &storage{
			users: users,
			audit: mongodb.NewAuditRepo(cli, cfg.Name),
			close: cli.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(reg)

	// 2. Хранилище пользователей и аудита
	store, err := openStorage(appCtx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("storage unavailable", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	// Оборачиваем в Reliability (Retries, Circuit Breaker)
	users := repository.NewReliableStore(store.users, metrics, logger)

	deps := map[string]handler.Pinger{"database": users}

	// 3. Ротация refresh-токенов: Redis, если включен, иначе память процесса
	var revocations auth.RevocationStore
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		revocations = auth.NewRedisRevocationStore(rdb)
	} else if cfg.Auth.RotateRefreshTokens {
		logger.Warn("redis disabled: consumed refresh tokens are tracked in memory")
		revocations = auth.NewMemoryRevocationStore()
	}

	// 4. Токены и пароли
	codec, err := auth.NewCodec(cfg.Auth.SecretKey)
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}
	issuer := auth.NewIssuer(codec, cfg.Auth.AccessTokenLifetime(), cfg.Auth.RefreshTokenLifetime())
	validator := auth.NewValidator(codec)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	// 5. Аудит пачками в то же хранилище
	trail := audit.NewTrail(store.audit, cfg.Audit, metrics, logger)
	trail.Start()

	// 6. Сервисы (Dependency Injection)
	opts := []service.Option{service.WithAuditor(trail), service.WithMetrics(metrics)}
	authOpts := []service.Option{service.WithAuditor(trail), service.WithMetrics(metrics)}
	if revocations != nil && cfg.Auth.RotateRefreshTokens {
		authOpts = append(authOpts, service.WithRevocationStore(revocations))
	}
	authService := service.NewAuthService(users, hasher, issuer, validator, logger, authOpts...)
	userService := service.NewUserService(users, hasher, logger, opts...)
	auditService := service.NewAuditService(store.audit)

	authenticator := auth.NewAuthenticator(validator, users, logger, metrics)

	api := server.New(cfg, logger, metrics, authenticator, userService, server.Handlers{
		Auth:   handler.NewAuthHandler(authService, logger),
		Users:  handler.NewUserHandler(userService, logger),
		Audit:  handler.NewAuditHandler(auditService, logger),
		Health: handler.NewHealthHandler(deps, logger),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Экспортируем метрики для Prometheus
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// 7. gRPC: health-check под тем же фильтром bearer-токена
	var grpcSrv *grpc.Server
	if cfg.GRPC.Enabled {
		grpcSrv = grpc.NewServer(grpc.UnaryInterceptor(auth.UnaryAuthInterceptor(authenticator)))
		hs := health.NewServer()
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcSrv, hs)

		go func() {
			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
			if err != nil {
				logger.Fatal("failed to listen gRPC", zap.Error(err))
			}
			logger.Info("gRPC server started", zap.Int("port", cfg.GRPC.Port))
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("gRPC server stopped", zap.Error(err))
			}
		}()
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("auth service started", zap.String("addr", srv.Addr), zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("auth service stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}

	// Аудит дописываем до закрытия хранилища
	trail.Stop()
	if err := store.close(shutdownCtx); err != nil {
		logger.Warn("storage close", zap.Error(err))
	}
	logger.Info("auth service exited properly")
}
