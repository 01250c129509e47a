package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-dashboard/internal/api/http"
	"github.com/i474232898/weather-dashboard/internal/api/ws"
	"github.com/i474232898/weather-dashboard/internal/cache"
	"github.com/i474232898/weather-dashboard/internal/config"
	"github.com/i474232898/weather-dashboard/internal/coordinator"
	"github.com/i474232898/weather-dashboard/internal/favorites"
	"github.com/i474232898/weather-dashboard/internal/scheduler"
	"github.com/i474232898/weather-dashboard/internal/session"
	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
	"github.com/i474232898/weather-dashboard/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Key-value backend shared by the weather cache and favorites.
	kv, err := store.Open(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer kv.Close()

	weatherCache := cache.New(kv, cache.WithTTL(cfg.CacheTTL), cache.WithCapacity(cfg.CacheCapacity))
	state := session.New()
	favs := favorites.New(kv)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	owm := providers.NewOpenWeatherClient(httpClient, providers.OpenWeatherConfig{
		APIKey:  cfg.OpenWeatherAPIKey,
		BaseURL: cfg.OpenWeatherBaseURL,
		Lang:    cfg.OpenWeatherLang,
		Backoff: providers.BackoffConfig{MaxRetries: cfg.ProviderMaxRetries},
	})

	coord := coordinator.New(owm, weatherCache, state)

	if cfg.DefaultCity != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			log.Printf("INFO: fetching default city %q", cfg.DefaultCity)
			coord.FetchByLocation(ctx, weather.CityLocation(cfg.DefaultCity))
		}()
	}

	// Scheduler that periodically refreshes the displayed location.
	sched := scheduler.New(cfg.RefreshInterval, coord)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
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

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-dashboard",
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Coordinator: coord,
		State:       state,
		Cache:       weatherCache,
		Geocoder:    owm,
		Favorites:   favs,
	})

	// Live snapshot push, disabled unless WS_PORT is set.
	push := ws.NewServer(state, cfg.WSPort)
	push.Start()

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

	coord.Clear()
	if err := push.Stop(shutdownCtx); err != nil {
		log.Printf("error stopping websocket server: %v", err)
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
