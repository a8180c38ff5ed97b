// Package main provides the main entry point for the order sequencer service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/order-sequencer/app/handlers"
	"github.com/amirphl/order-sequencer/app/router"
	businessflow "github.com/amirphl/order-sequencer/business_flow"
	"github.com/amirphl/order-sequencer/config"
	"github.com/amirphl/order-sequencer/logger"
	"github.com/amirphl/order-sequencer/models"
	"github.com/amirphl/order-sequencer/repository"
	"github.com/amirphl/order-sequencer/utils"
	"github.com/juju/mgo/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	log       *logger.Logger
	stopFuncs []func()
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Infow("starting order sequencer",
		"version", cfg.Deployment.Version,
		"environment", cfg.Deployment.Environment,
		"backend", cfg.Sequence.Backend,
	)

	// Initialize application
	app, err := initializeApplication(cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case sig := <-sigChan:
		log.Infow("shutting down gracefully", "signal", sig.String())
	case err := <-serverErr:
		log.Errorw("server stopped unexpectedly", "error", err)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during shutdown", "error", err)
	}

	// Release stores after in-flight requests drained
	for _, fn := range app.stopFuncs {
		fn()
	}

	log.Info("server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.SQLitePath))
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	}

	gormLog := gormlogger.Discard
	if cfg.SlowQueryLog {
		gormLog = gormlogger.New(zap.NewStdLog(log.Desugar()), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling; SQLite takes one writer at a time
	if cfg.Driver == config.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&models.SequenceCounter{}); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	log.Infow("database connection established",
		"driver", cfg.Driver,
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
	)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig, log *logger.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Infow("redis connection established", "db", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, log *logger.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warnw("redis healthcheck failed", "error", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeMongo dials the cluster with majority writes so an acknowledged
// increment survives a primary failover.
func initializeMongo(cfg config.MongoConfig, log *logger.Logger) (*mgo.Session, error) {
	session, err := mgo.DialWithTimeout(cfg.URL, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	session.SetMode(mgo.Primary, true)
	session.SetSafe(&mgo.Safe{WMode: "majority", J: true})

	log.Infow("mongo connection established", "database", cfg.Database, "collection", cfg.Collection)
	return session, nil
}

// initializeSequenceStore builds the counter repository for the configured
// backend along with its health probe and cleanup functions.
func initializeSequenceStore(cfg *config.ProductionConfig, log *logger.Logger) (repository.SequenceCounterRepository, handlers.PingFunc, []func(), error) {
	var stopFuncs []func()

	switch cfg.Sequence.Backend {
	case config.BackendDatabase:
		db, err := initializeDatabase(cfg.Database, log)
		if err != nil {
			return nil, nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, nil, err
		}
		stopFuncs = append(stopFuncs, func() { _ = sqlDB.Close() })
		return repository.NewSequenceCounterRepository(db), sqlDB.PingContext, stopFuncs, nil

	case config.BackendRedis:
		rc, err := initializeCache(cfg.Cache, log)
		if err != nil {
			return nil, nil, nil, err
		}
		stopMonitor := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval, log)
		stopFuncs = append(stopFuncs, stopMonitor, func() { _ = rc.Close() })
		ping := func(ctx context.Context) error { return rc.Ping(ctx).Err() }
		repo := repository.NewRedisSequenceCounterRepository(rc, cfg.Cache.RedisPrefix,
			repository.WithRedisDurability(repository.RedisDurability{
				LocalFsyncs: cfg.Cache.WaitAOFLocal,
				Replicas:    cfg.Cache.WaitAOFReplicas,
				Timeout:     cfg.Cache.WaitAOFTimeout,
			}))
		return repo, ping, stopFuncs, nil

	case config.BackendMongo:
		session, err := initializeMongo(cfg.Mongo, log)
		if err != nil {
			return nil, nil, nil, err
		}
		stopFuncs = append(stopFuncs, session.Close)
		ping := func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s := session.Copy()
			defer s.Close()
			return s.Ping()
		}
		return repository.NewMongoSequenceCounterRepository(session, cfg.Mongo.Database, cfg.Mongo.Collection), ping, stopFuncs, nil

	case config.BackendMemory:
		log.Warn("memory sequence backend keeps counters in this process only; values reset on restart")
		return repository.NewMemorySequenceCounterRepository(), nil, nil, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown sequence backend %q", cfg.Sequence.Backend)
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, log *logger.Logger) (*Application, error) {
	counterRepo, ping, stopFuncs, err := initializeSequenceStore(cfg, log)
	if err != nil {
		return nil, err
	}

	// Initialize business flows
	sequenceFlow := businessflow.NewSequenceFlow(counterRepo, log.With("component", "sequence"), businessflow.SequenceFlowOptions{
		OperationTimeout: cfg.Sequence.OperationTimeout,
		AllowedCounters:  cfg.Sequence.AllowedCounters,
	})
	orderNumberFlow := businessflow.NewOrderNumberFlow(sequenceFlow, log.With("component", "order_number"), businessflow.OrderNumberFlowOptions{
		Counter: cfg.Sequence.OrderNumberCounter,
		Prefix:  cfg.Sequence.OrderNumberPrefix,
		Padding: cfg.Sequence.OrderNumberPadding,
	})

	// Initialize handlers
	requestTimeout := cfg.Server.WriteTimeout
	if requestTimeout <= 0 {
		requestTimeout = utils.DefaultRequestTimeout
	}
	sequenceHandler := handlers.NewSequenceHandler(sequenceFlow, requestTimeout)
	orderNumberHandler := handlers.NewOrderNumberHandler(orderNumberFlow, requestTimeout)
	healthHandler := handlers.NewHealthHandler(cfg.Sequence.Backend, cfg.Deployment.Version, ping)

	// Initialize router
	appRouter := router.NewFiberRouter(cfg, log, sequenceHandler, orderNumberHandler, healthHandler)

	return &Application{
		router:    appRouter,
		config:    cfg,
		log:       log,
		stopFuncs: stopFuncs,
	}, nil
}
