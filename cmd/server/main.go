package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"provenance-service/config"
	"provenance-service/internal/api"
	"provenance-service/internal/broker"
	"provenance-service/internal/ledger"
	"provenance-service/internal/mirror"
	"provenance-service/internal/redisclient"
	"provenance-service/internal/service"
	"provenance-service/internal/store"
	"provenance-service/internal/util"
	"provenance-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting provenance service")
	cfg.LogSummary(logger)

	tp, err := util.InitTracer("provenance-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	local, err := mirror.Open(cfg.Mirror.Dir)
	if err != nil {
		logger.Fatal("Failed to open local mirror", zap.String("dir", cfg.Mirror.Dir), zap.Error(err))
	}
	logger.Info("Local mirror opened", zap.String("dir", local.Dir()))

	ledgerClient := ledger.NewClient(ledger.NewInvoker(cfg.InvokerConfig(), ledger.ExecRunner{}))

	provenanceService := service.NewProvenanceService(ledgerClient, local)
	ledgerService := service.NewLedgerService(ledgerClient)

	handler := api.NewHandler(provenanceService, ledgerService)
	handler.AddReadinessCheck("ledger", ledgerClient.Invoker().Gate().Ensure)

	var db *store.Store
	if cfg.Database.URL != "" {
		db, err = store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Warn("Remote mirror database unavailable, continuing without it", zap.Error(err))
			db = nil
		} else if err := db.Migrate(context.Background()); err != nil {
			logger.Warn("Failed to apply remote mirror schema, continuing without it", zap.Error(err))
			_ = db.Close()
			db = nil
		} else {
			defer db.Close()
			logger.Info("Database connected")
			provenanceService.SetRemoteReader(db)
			handler.AddReadinessCheck("postgres", db.Ping)
		}
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.StatusTTL)
		if err != nil {
			logger.Warn("Redis unavailable, status cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			logger.Info("Redis connected")
			provenanceService.SetStatusCache(redisClient)
			ledgerService.SetStatusCache(redisClient)
			handler.AddReadinessCheck("redis", redisClient.Ping)
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var mirrorWorker *worker.MirrorWorker
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicProvenance)
		defer producer.Close()
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicProvenance))

		provenanceService.AddRemoteMirror("kafka", broker.NewEventPublisher(producer))

		if db != nil {
			consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicProvenance, cfg.Kafka.ConsumerGroup)
			mirrorWorker = worker.NewMirrorWorker(consumer, db)
			go func() {
				if err := mirrorWorker.Start(workerCtx); err != nil {
					logger.Error("Mirror worker error", zap.Error(err))
				}
			}()
		}
	} else if db != nil {
		provenanceService.AddRemoteMirror("postgres", db)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if mirrorWorker != nil {
		if err := mirrorWorker.Stop(); err != nil {
			logger.Warn("Error stopping mirror worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
