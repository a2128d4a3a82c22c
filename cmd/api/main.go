package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/icecreamshop/gateway"
	"github.com/example/icecreamshop/pkg/auth"
	"github.com/example/icecreamshop/pkg/config"
	"github.com/example/icecreamshop/pkg/discovery"
	"github.com/example/icecreamshop/pkg/grpc"
	"github.com/example/icecreamshop/pkg/logging"
	"github.com/example/icecreamshop/pkg/messaging"
	"github.com/example/icecreamshop/pkg/notify"
	"github.com/example/icecreamshop/pkg/repository"
	"github.com/example/icecreamshop/pkg/service"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const (
	healthInterval  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

type auditStore interface {
	notify.AuditWriter
	service.AuditReader
}

func main() {
	configPath := pflag.StringP("config", "c", "config/config.yaml", "path to the YAML config file")
	pflag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Service stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting shop API",
		zap.String("name", cfg.Server.Name),
		zap.String("http", cfg.Server.HTTPAddr()),
		zap.String("grpc", cfg.Server.GRPCAddr()),
		zap.String("database", cfg.Database.Driver))

	db, err := repository.Open(&cfg.Database, logger)
	if err != nil {
		return err
	}
	defer repository.Close(db)

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(db); err != nil {
			return err
		}
	}

	var cache service.ProductCache
	if cfg.Redis.Enabled {
		redisRepo := repository.NewRedisRepository(&cfg.Redis)
		if err := redisRepo.Ping(ctx); err != nil {
			logger.Warn("Redis connection failed, product cache disabled", zap.Error(err))
			_ = redisRepo.Close()
		} else {
			logger.Info("Redis connected successfully")
			cache = redisRepo
			defer redisRepo.Close()
		}
	}

	var audit auditStore = repository.NewMemoryAuditLog()
	if cfg.MongoDB.Enabled {
		mongoRepo, err := repository.NewMongoRepository(ctx, &cfg.MongoDB)
		if err != nil {
			logger.Warn("MongoDB connection failed, keeping audit log in memory", zap.Error(err))
		} else {
			logger.Info("MongoDB connected successfully")
			audit = mongoRepo
			defer mongoRepo.Close(context.Background())
		}
	}

	var publisher messaging.Publisher
	if cfg.Kafka.Enabled {
		kafkaPublisher := messaging.NewKafkaPublisher(&cfg.Kafka)
		publisher = kafkaPublisher
		defer kafkaPublisher.Close()
	}

	dispatcher, err := notify.NewDispatcher(cfg.Server.Name, audit, publisher, logger)
	if err != nil {
		return err
	}
	defer dispatcher.Stop()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.JWTExpiresIn)
	var verifier auth.IdentityVerifier
	if cfg.Auth.GoogleClientID != "" {
		verifier = auth.NewGoogleVerifier(cfg.Auth.GoogleClientID)
	}

	services := gateway.Services{
		Auth:    service.NewAuthService(db, tokens, verifier, logger),
		Catalog: service.NewCatalogService(db, cache, logger),
		Cart:    service.NewCartService(db, logger),
		Orders:  service.NewOrderService(db, cache, dispatcher, audit, logger),
		Reviews: service.NewReviewService(db, cache, logger),
	}
	dbCheck := func(ctx context.Context) error {
		return repository.Ping(ctx, db)
	}

	gw := gateway.NewGateway(cfg, logger.Named("http"), tokens, services, dbCheck)
	healthServer := grpc.NewHealthServer(dbCheck, healthInterval, logger.Named("health"))
	go healthServer.Watch(ctx)

	serverErr := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := healthServer.Start(cfg.Server.GRPCAddr()); err != nil {
			serverErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	if cfg.Etcd.Enabled {
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger.Named("discovery"))
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else {
			instance := &discovery.ServiceInstance{
				Name:     cfg.Server.Name,
				Host:     cfg.Server.Host,
				HTTPPort: cfg.Server.Port,
				GRPCPort: cfg.Server.GRPCPort,
			}
			if err := sd.Register(ctx, instance); err != nil {
				logger.Warn("Failed to register service", zap.Error(err))
			}
			defer func() {
				dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := sd.Deregister(dctx, instance); err != nil {
					logger.Error("Failed to deregister service", zap.Error(err))
				}
				sd.Close()
			}()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case runErr = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	healthServer.Stop()

	return runErr
}
