package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Mityatc/hospitai/internal/cache"
	"github.com/Mityatc/hospitai/internal/config"
	"github.com/Mityatc/hospitai/internal/envdata"
	httpapi "github.com/Mityatc/hospitai/internal/http"
	"github.com/Mityatc/hospitai/internal/logger"
	"github.com/Mityatc/hospitai/internal/notifier"
	"github.com/Mityatc/hospitai/internal/repository"
	"github.com/Mityatc/hospitai/internal/service"
)

const demoSeedDays = 30

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "hospitai-agent")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	store, dbCloser, err := buildStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to init metrics store", zap.Error(err))
	}
	if dbCloser != nil {
		defer dbCloser()
	}

	var resultCache service.ResultCache
	if cfg.Redis.Enabled {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		cancel()

		ttl := time.Duration(cfg.Redis.CycleTTLSeconds) * time.Second
		resultCache = cache.NewCycleCache(redisClient, ttl, log)
		log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	var actionNotifier service.Notifier
	if cfg.MQTT.Enabled && cfg.MQTT.Broker != "" {
		n, err := notifier.NewActionNotifier(
			cfg.MQTT.Broker, cfg.MQTT.ClientID,
			cfg.MQTT.Username, cfg.MQTT.Password,
			cfg.MQTT.Topic, log,
		)
		if err != nil {
			log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer n.Close()
		actionNotifier = n
	}

	svc := service.NewAgentService(store, resultCache, actionNotifier, service.Options{
		HistoryDays:    cfg.Agent.HistoryDays,
		AuditLogCap:    cfg.Agent.AuditLogCap,
		AutonomousMode: cfg.Agent.AutonomousMode,
	}, log)

	// The in-memory store starts empty; seed it so the demo endpoints have
	// history to evaluate.
	if !cfg.Database.Enabled {
		if err := svc.SeedDemoData(cfg.Agent.DefaultFacilityID, demoSeedDays); err != nil {
			log.Fatal("Failed to seed demo data", zap.Error(err))
		}
	}

	weather := envdata.NewClient(cfg.OpenWeather.BaseURL, cfg.OpenWeather.APIKey, log)

	router := httpapi.NewRouter(log)
	router.RegisterAgentRoutes(httpapi.NewAgentHandler(svc, cfg.Agent.DefaultFacilityID, log))
	router.RegisterDashboardRoutes(httpapi.NewDashboardHandler(svc, weather, cfg.Agent.DefaultFacilityID, log))
	router.RegisterHealthRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErrChan:
		log.Fatal("HTTP server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}

	log.Info("Agent service stopped")
}

// buildStore picks the Postgres or in-memory metrics store per config.
func buildStore(cfg *config.Config, log *zap.Logger) (repository.MetricsStore, func() error, error) {
	if !cfg.Database.Enabled {
		log.Info("Database disabled, using in-memory metrics store")
		return repository.NewMemoryStore(), nil, nil
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)
	return repository.NewMetricsRepository(db, log), db.Close, nil
}
