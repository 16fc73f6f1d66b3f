package main

import (
	"fmt"
	"os"
	"time"

	"inspection-map/internal/common/config"
	"inspection-map/internal/common/logging"
	"inspection-map/internal/common/middleware"
	"inspection-map/internal/gateway/handlers"
	"inspection-map/internal/gateway/proxy"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// API Gateway
// ============================================================

func main() {
	cfg := config.Load()
	log := logging.Setup(cfg.Environment)
	if os.Getenv("PORT") == "" {
		cfg.Port = "8080"
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Map Gateway",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", handlers.LivenessProbe)
	app.Get("/health/ready", handlers.ReadinessProbe)
	app.Get("/health/startup", handlers.StartupProbe)

	// ============================================================
	// Docs
	// ============================================================

	app.Get("/docs", handlers.SwaggerUI)
	app.Get("/docs/openapi.yaml", handlers.SwaggerSpec)

	// ============================================================
	// Service Routes (Proxy)
	// ============================================================

	mapURL := getEnv("MAPSVC_URL", "http://localhost:3000")

	api := app.Group("/api/v1")

	api.Post("/sessions", proxy.ProxyTo(mapURL+"/sessions"))
	api.Post("/map/reload", proxy.ProxyTo(mapURL+"/map/reload"))

	// Все операции внутри сессии идут одним шаблоном пути
	api.All("/sessions/:id", func(c fiber.Ctx) error {
		return proxy.Forward(c, fmt.Sprintf("%s/sessions/%s", mapURL, c.Params("id")))
	})
	api.All("/sessions/:id/*", func(c fiber.Ctx) error {
		return proxy.Forward(c, fmt.Sprintf("%s/sessions/%s/%s", mapURL, c.Params("id"), c.Params("*")))
	})

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Infof("Starting Map Gateway on %s (env: %s)", addr, cfg.Environment)
	log.Infof("Proxying sessions to %s", mapURL)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}
