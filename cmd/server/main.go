package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/granasat/partledger/internal/adapter/handler"
	"github.com/granasat/partledger/internal/adapter/messaging"
	registryclient "github.com/granasat/partledger/internal/adapter/registry"
	"github.com/granasat/partledger/internal/adapter/storage"
	"github.com/granasat/partledger/internal/config"
	"github.com/granasat/partledger/internal/core/domain"
	"github.com/granasat/partledger/internal/core/service"
	"github.com/granasat/partledger/internal/port"
	"github.com/granasat/partledger/internal/scheduler"
	"github.com/granasat/partledger/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sqlx.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		baseLogger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		baseLogger.Fatal("failed to ping mysql", zap.Error(err))
	}
	baseLogger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		baseLogger.Fatal("failed to connect redis", zap.Error(err))
	}
	baseLogger.Info("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	registry := registryclient.NewHTTPRegistry(cfg.Registry)
	producer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)

	var archive port.AuditArchive
	var mongoAdapter *storage.MongoAdapter
	if cfg.Mongo.URI != "" {
		mongoAdapter, err = storage.NewMongoAdapter(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb archive", zap.Error(err))
		}
		archive = mongoAdapter
		defer func() {
			if err := mongoAdapter.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
	} else {
		baseLogger.Warn("mongodb uri missing, audit reports will only be logged")
	}

	// Initialize services
	ledgerSvc := service.NewLedgerService(mysqlAdapter, mysqlAdapter, redisAdapter, registry,
		cfg.Events.QueueSize, logger.Named(baseLogger, "svc.ledger"))
	auditSvc := service.NewAuditService(mysqlAdapter, mysqlAdapter, archive,
		logger.Named(baseLogger, "svc.audit"))

	// Start event publish workers
	var wg sync.WaitGroup
	for i := 0; i < cfg.Events.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			publishLoop(id, ledgerSvc.GetEventQueue(), producer, logger.Named(baseLogger, "publisher"))
		}(i)
	}
	baseLogger.Info("started event publish workers", zap.Int("workers", cfg.Events.Workers))

	// Start audit scheduler
	sched := scheduler.NewScheduler(cfg.Audit.CronSchedule, auditSvc, logger.Named(baseLogger, "scheduler"))
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	stockHandler := handler.NewStockHandler(ledgerSvc, logger.Named(baseLogger, "handlers.stock"))
	engine := handler.NewRouter(stockHandler, logger.Named(baseLogger, "router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	baseLogger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	baseLogger.Info("http server stopped")

	// Close event queue and wait for publishers to drain
	ledgerSvc.Close()
	wg.Wait()
	baseLogger.Info("publish workers stopped")

	if err := producer.Close(); err != nil {
		baseLogger.Error("failed to close kafka producer", zap.Error(err))
	}
	rdb.Close()
	db.Close()
	baseLogger.Info("connections closed")
}

// publishLoop drains committed stock events to kafka. Publish failures are
// logged and dropped: the ledger is already durable and events are a
// downstream convenience.
func publishLoop(id int, queue <-chan domain.StockEvent, producer port.EventPublisher, log *zap.Logger) {
	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := producer.PublishStockEvent(ctx, &event); err != nil {
			log.Error("failed to publish stock event",
				zap.Int("worker", id),
				zap.String("stock_id", event.StockID),
				zap.String("type", event.Type),
				zap.Error(err))
		}

		cancel()
	}
}
