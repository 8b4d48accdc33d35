package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/terraguard/climate-alerts/internal/analysis"
	"github.com/terraguard/climate-alerts/internal/api"
	"github.com/terraguard/climate-alerts/internal/cache"
	"github.com/terraguard/climate-alerts/internal/config"
	"github.com/terraguard/climate-alerts/internal/detector"
	"github.com/terraguard/climate-alerts/internal/dispatch"
	"github.com/terraguard/climate-alerts/internal/geocode"
	"github.com/terraguard/climate-alerts/internal/logging"
	"github.com/terraguard/climate-alerts/internal/models"
	"github.com/terraguard/climate-alerts/internal/observability"
	"github.com/terraguard/climate-alerts/internal/repository"
	"github.com/terraguard/climate-alerts/internal/summary"
	"github.com/terraguard/climate-alerts/internal/weather"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	clock := clockwork.NewRealClock()

	db, err := repository.NewSQLiteDB(cfg.DB.Path, cfg.Alerts.TTL, clock)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	resolver := geocode.NewResolver(
		geocode.StaticRegions(),
		geocode.NewNominatimClient(cfg.Upstream.NominatimBaseURL, cfg.Upstream.NominatimTimeout),
	)
	weatherClient := weather.NewNASAPowerClient(cfg.Upstream.WeatherBaseURL, cfg.Upstream.WeatherTimeout, clock)

	var textProvider summary.TextProvider
	if cfg.Summary.APIKey != "" {
		textProvider = summary.NewOpenRouterClient(cfg.Summary.APIKey, cfg.Summary.BaseURL, cfg.Summary.Model, cfg.Summary.Timeout)
	} else {
		slog.Warn("no summary API key configured, using fallback narratives")
	}
	generator := summary.NewGenerator(textProvider, cfg.Summary.MaxNarrative)

	providers := make(map[models.Channel]dispatch.ChannelProvider)
	if cfg.Channels.TelegramToken != "" {
		providers[models.ChannelTelegram] = dispatch.NewTelegramClient(cfg.Channels.TelegramToken, cfg.Channels.TelegramBaseURL)
	}
	if cfg.Channels.TwilioSID != "" && cfg.Channels.TwilioToken != "" {
		providers[models.ChannelWhatsApp] = dispatch.NewTwilioWhatsAppClient(
			cfg.Channels.TwilioSID, cfg.Channels.TwilioToken, cfg.Channels.TwilioFrom, cfg.Channels.TwilioBaseURL)
	}
	if len(providers) == 0 {
		slog.Warn("no messaging channels configured, alerts will not be dispatched")
	}
	engine := dispatch.NewEngine(db, db, providers, cfg.Channels.SendTimeout, clock, metrics)

	det := detector.New(
		detector.Options{
			WorkerCount:         cfg.Detector.WorkerCount,
			WallBudget:          cfg.Detector.WallBudget,
			RetryBackoff:        cfg.Detector.RetryBackoff,
			Regions:             cfg.Detector.Regions,
			DispatchOnSupersede: cfg.Detector.DispatchOnSupersede,
		},
		resolver, weatherClient, generator, db, db, engine, clock, metrics,
	)

	scheduler := detector.NewScheduler(det, db, cfg.Detector.Interval, cfg.Detector.SweepInterval, metrics)
	if err := scheduler.Start(); err != nil {
		logging.Fatalf("Failed to start scheduler: %v", err)
	}

	analysisCache := cache.New(cfg.Cache.TTL, clock, metrics)
	analyzer := analysis.NewService(analysisCache, resolver, weatherClient, generator, db)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.RateLimit.RPS))

	handler := api.NewHandler(analyzer, db, db, scheduler, cfg.Cron.Secret, registry)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
