package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"inspection-map/internal/common/config"
	"inspection-map/internal/common/logging"
	"inspection-map/internal/common/middleware"
	"inspection-map/internal/mapsvc/geoindex"
	"inspection-map/internal/mapsvc/handlers"
	"inspection-map/internal/mapsvc/selection"
	"inspection-map/internal/mapsvc/service"
	"inspection-map/internal/store"
	"inspection-map/internal/upstream"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Map Service
// ============================================================

func main() {
	cfg := config.Load()
	log := logging.Setup(cfg.Environment)

	// ============================================================
	// Local Snapshot Store
	// ============================================================

	db, err := store.OpenSQLite(cfg.CacheDBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	snapshots := store.New(db)
	ctx := context.Background()
	if err := snapshots.Init(ctx, "migrations/001_init_cache.sql"); err != nil {
		log.Fatalf("init db: %v", err)
	}
	draftTTL := time.Duration(cfg.DraftTTLHours) * time.Hour
	if purged, err := snapshots.PurgeExpiredDrafts(ctx, draftTTL); err != nil {
		log.Warnf("purge drafts: %v", err)
	} else if purged > 0 {
		log.Infof("purged %d expired draft(s)", purged)
	}

	// ============================================================
	// Upstream Clients
	// ============================================================

	httpClient := &http.Client{Timeout: 15 * time.Second}
	buildings := upstream.NewBuildingClient(cfg.BuildingAPIURL, httpClient, logging.Component("BUILDINGS"))
	layers := upstream.NewLayerClient(cfg.LayerAPIURL, httpClient, logging.Component("LAYERS"))
	uploads := upstream.NewUploadClient(cfg.UploadAPIURL, httpClient, logging.Component("UPLOADS"))

	// ============================================================
	// Geometry Index
	// ============================================================

	index := geoindex.New()
	reloadStories := func(ctx context.Context) error {
		fc, err := buildings.GetStories(ctx)
		if err != nil {
			return err
		}
		index.Replace(fc)
		log.Infof("geometry index loaded: %d feature(s)", index.Len())
		return nil
	}
	if err := reloadStories(ctx); err != nil {
		// Не фатально: индекс пуст, клики деградируют до "нет сегмента"
		log.Warnf("initial stories load: %v", err)
	}

	// ============================================================
	// Sessions
	// ============================================================

	manager := service.NewManager(service.Deps{
		Index:     index,
		Resolver:  selection.NewResolver(cfg.FloorFallbackOffset),
		Cache:     selection.NewBuildingCache(),
		Buildings: buildings,
		Layers:    layers,
		Uploads:   uploads,
		Snapshots: snapshots,
		Drafts:    snapshots,
		DraftTTL:  draftTTL,
	}, logging.Component("SESSION"))

	idle := time.Duration(cfg.SessionIdleMinutes) * time.Minute
	go func() {
		for range time.Tick(idle / 2) {
			manager.Sweep(idle)
		}
	}()

	h := handlers.New(manager, logging.Component("HANDLERS"))

	// ============================================================
	// HTTP Server
	// ============================================================

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Map Service",
	})

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	app.Get("/health/ready", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ready",
			"features": index.Len(),
			"sessions": manager.Count(),
		})
	})

	// ============================================================
	// Map Routes
	// ============================================================

	app.Post("/map/reload", func(c fiber.Ctx) error {
		if err := reloadStories(c.Context()); err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"features": index.Len()})
	})

	// ============================================================
	// Session Routes
	// ============================================================

	app.Post("/sessions", h.OpenSession)
	app.Delete("/sessions/:id", h.CloseSession)
	app.Get("/sessions/:id/state", h.State)
	app.Post("/sessions/:id/click", h.Click)
	app.Post("/sessions/:id/selection/close", h.CloseSelection)
	app.Post("/sessions/:id/selection/retry", h.Retry)
	app.Post("/sessions/:id/selection/external", h.ExternalSelection)
	app.Post("/sessions/:id/selection/floor", h.SelectFloor)
	app.Post("/sessions/:id/selection/layer", h.SelectLayer)
	app.Post("/sessions/:id/stories/hide", h.HideStory)
	app.Post("/sessions/:id/stories/unhide", h.UnhideStory)
	app.Post("/sessions/:id/stories/reset", h.ResetHidden)
	app.Post("/sessions/:id/fit", h.Fit)

	// ============================================================
	// Floor Editor Routes
	// ============================================================

	app.Get("/sessions/:id/floors/:floorId/layers", h.FloorLayers)
	app.Post("/sessions/:id/floors/:floorId/layers/drop", h.DropLayer)
	app.Post("/sessions/:id/floors/:floorId/layers/:layerId/drag", h.DragLayer)
	app.Delete("/sessions/:id/floors/:floorId/layers/:layerId", h.DeleteLayer)
	app.Post("/sessions/:id/floors/:floorId/layers/save-all", h.SaveAll)
	app.Put("/sessions/:id/floors/:floorId/draft", h.PutFloorDraft)
	app.Get("/sessions/:id/floors/:floorId/draft", h.GetFloorDraft)

	// ============================================================
	// Add-Layer Workflow Routes
	// ============================================================

	app.Post("/sessions/:id/floors/:floorId/workflow/open", h.WorkflowOpen)
	app.Post("/sessions/:id/floors/:floorId/workflow/type", h.WorkflowPickType)
	app.Post("/sessions/:id/floors/:floorId/workflow/place", h.WorkflowPlace)
	app.Post("/sessions/:id/floors/:floorId/workflow/picture", h.WorkflowAttachPicture)
	app.Post("/sessions/:id/floors/:floorId/workflow/skip-picture", h.WorkflowSkipPicture)
	app.Post("/sessions/:id/floors/:floorId/workflow/note", h.WorkflowNote)
	app.Post("/sessions/:id/floors/:floorId/workflow/submit", h.WorkflowSubmit)
	app.Post("/sessions/:id/floors/:floorId/workflow/cancel", h.WorkflowCancel)
	app.Post("/sessions/:id/floors/:floorId/workflow/dismiss-error", h.WorkflowDismissError)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Infof("Starting Map Service on %s (env: %s)", addr, cfg.Environment)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
