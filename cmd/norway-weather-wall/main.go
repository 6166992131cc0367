package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/rezamirzaei/norway-weather-wall-influxdb/internal/api/http"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/auth"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/config"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/measurements"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/metrics"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/scheduler"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/store/influx"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/weather"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/weather/metno"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Time-series store and repositories.
	client := influx.NewClient(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxTimeout)
	defer client.Close()

	weatherRepo := influx.NewWeatherRepository(client, cfg.InfluxOrg, cfg.InfluxBucket, cfg.WeatherMeasurement)
	measurementRepo := influx.NewMeasurementRepository(client, cfg.InfluxOrg, cfg.InfluxBucket, cfg.InfluxMeasurement)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.WeatherTimeout,
	}
	provider := metno.NewClient(httpClient, cfg.WeatherUserAgent)

	// Core weather ingestion service with rate limiter and cache.
	limiter := weather.NewRefreshLimiter(cfg.WeatherMinRefreshInterval)
	cache := weather.NewCache()
	weatherSvc := weather.NewService(weatherRepo, provider, cfg.Locations, limiter, cache)

	measurementSvc := measurements.NewService(measurementRepo)
	authManager := auth.NewManager(cfg.SecretKey, cfg.AccessTokenTTL, cfg.AdminUsername, cfg.AdminPasswordHash)

	// Background ingestion loop.
	if cfg.BackgroundRefreshEnabled {
		sched := scheduler.New(weatherSvc, cfg.BackgroundRefreshInterval)
		if err := sched.Start(); err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "norway-weather-wall",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Prometheus exposition.
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.API{
		Auth:         authManager,
		Measurements: measurementSvc,
		Weather:      weatherSvc,
		Health:       weatherRepo,
	})

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
