package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Miszion/riftbound-online-backend/internal/auth"
	"github.com/Miszion/riftbound-online-backend/internal/config"
	"github.com/Miszion/riftbound-online-backend/internal/game"
	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
	"github.com/Miszion/riftbound-online-backend/internal/matchmaking"
	"github.com/Miszion/riftbound-online-backend/internal/repository"
	"github.com/Miszion/riftbound-online-backend/internal/server"
	"github.com/Miszion/riftbound-online-backend/internal/statesync"
	"github.com/Miszion/riftbound-online-backend/internal/telemetry"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting riftbound server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("riftbound server stopped")
}

// storage is what the runtime persists through. Every field is nil when no
// database is configured.
type storage struct {
	queue     matchmaking.Store
	decks     matchmaking.DeckLoader
	ratings   matchmaking.RatingSource
	snapshots statesync.SnapshotSaver
	results   statesync.ResultRecorder
	ping      server.HealthCheck
	close     func()
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (storage, error) {
	if cfg.URL == "" {
		logger.Warn("database not configured; using in-memory queue and starter decks, results are not persisted")
		return storage{
			queue: matchmaking.NewMemoryStore(),
			decks: matchmaking.StarterDecks{},
			close: func() {},
		}, nil
	}

	db, err := repository.NewDB(ctx, cfg, logger)
	if err != nil {
		return storage{}, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Migrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return storage{}, fmt.Errorf("migrate database: %w", err)
		}
	}
	stats := db.Stats()
	logger.Info("database connection pool initialized",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
	)

	results := repository.NewResultRepository(db, logger)
	return storage{
		queue:     repository.NewQueueStore(db),
		decks:     matchmaking.FallbackDecks{Primary: repository.NewDecklistRepository(db)},
		ratings:   results,
		snapshots: repository.NewSnapshotRepository(db),
		results:   results,
		ping:      db.Ping,
		close:     db.Close,
	}, nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("flushing traces failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return err
	}
	logger.Info("card catalog loaded", zap.Int("cards", cat.Len()))

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.close()

	arena := game.NewArena(game.ArenaConfig{
		Catalog: cat,
		Options: cfg.Rules.Options(),
		Logger:  logger,
		Metrics: game.NewArenaMetrics(reg),
	})

	hub := statesync.NewHub(statesync.HubConfig{
		ReadBufferSize:  cfg.Server.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.Server.WebSocket.WriteBufferSize,
		SendQueue:       cfg.Server.WebSocket.SendQueue,
		PingInterval:    cfg.Server.WebSocket.PingInterval,
		AllowedOrigins:  cfg.Server.WebSocket.AllowedOrigins,
		Logger:          logger,
	})
	publisher := statesync.Fanout{hub}

	checks := map[string]server.HealthCheck{}
	if store.ping != nil {
		checks["database"] = store.ping
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		publisher = append(publisher, statesync.NewRedisPublisher(rdb, cfg.Redis.ChannelPrefix, cfg.Redis.HistorianQueue))
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("redis publisher enabled", zap.String("addr", cfg.Redis.Addr))
	}

	synchronizer := statesync.New(statesync.Config{
		Snapshots:        store.snapshots,
		Results:          store.results,
		Publisher:        publisher,
		Archiver:         arena,
		Logger:           logger,
		QueueSize:        cfg.Sync.SnapshotQueue,
		SnapshotRetries:  cfg.Sync.SnapshotRetries,
		SnapshotTimeout:  cfg.Sync.SnapshotTimeout,
		PublishTimeout:   cfg.Sync.PublishTimeout,
		ResultMaxBackoff: cfg.Sync.ResultMaxBackoff,
	})
	arena.SetSink(synchronizer)

	coord, err := matchmaking.NewCoordinator(matchmaking.Config{
		Store:         store.queue,
		Decks:         store.decks,
		Ratings:       store.ratings,
		Spawner:       arena,
		Modes:         cfg.Matchmaking.Modes,
		Policy:        cfg.Matchmaking.Policy(),
		SweepInterval: cfg.Matchmaking.SweepInterval,
		MatchedTTL:    cfg.Matchmaking.MatchedTTL,
		Logger:        logger,
		Metrics:       matchmaking.NewMetrics(reg),
	})
	if err != nil {
		return err
	}

	api, err := server.NewAPI(server.APIConfig{
		Queue:    coord,
		Matches:  arena,
		Hub:      hub,
		Tokens:   tokens,
		Gatherer: reg,
		Checks:   checks,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:         cfg.Server.HTTP.Address,
		Handler:      api,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
	}

	grpcServer := server.NewGRPCServer(cfg.Server.GRPC, server.NewRPCMetrics(reg), logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.GRPC.Address, err)
	}

	logger.Info("riftbound server initialized",
		zap.String("version", version),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.Strings("modes", coord.Modes()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return synchronizer.Run(gctx) })
	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error {
		arena.RunDeadlines(gctx, cfg.Server.DeadlineInterval)
		return nil
	})
	g.Go(func() error { return grpcServer.Serve(gctx, lis) })
	g.Go(func() error {
		logger.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully...")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})
	return g.Wait()
}

func loadCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		return catalog.Default()
	}
	cat, err := catalog.LoadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", cfg.Path, err)
	}
	return cat, nil
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
