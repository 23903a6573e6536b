package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/application/syncengine"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Inventory   *appinv.Service
	Coordinator *syncengine.Coordinator
	Metrics     http.Handler              // opcional
	PDF         ReplenishmentPDFGenerator // opcional
	JWTSecret   string
}

// Router registra las rutas de la API local.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Inventory (protegido)
	invGroup := protected.Group("/inventory")
	inventoryHandler := NewInventoryHandler(deps.Inventory, deps.PDF)
	invGroup.Post("/movements", inventoryHandler.RegisterMovement)
	invGroup.Get("/movements", inventoryHandler.ListMovements)
	invGroup.Get("/movements/:id", inventoryHandler.GetMovement)
	invGroup.Put("/movements/:id", inventoryHandler.ReplaceMovement)
	invGroup.Get("/positions", inventoryHandler.ListPositions)
	invGroup.Get("/positions/:key", inventoryHandler.GetPosition)
	invGroup.Put("/positions/:key/thresholds", RequireRole("admin"), inventoryHandler.SetThresholds)
	invGroup.Get("/replenishment-list", inventoryHandler.GetReplenishmentList)
	if deps.PDF != nil {
		invGroup.Get("/replenishment-list.pdf", inventoryHandler.GetReplenishmentPDF)
	}

	// Sync (protegido)
	if deps.Coordinator != nil {
		syncGroup := protected.Group("/sync")
		syncHandler := NewSyncHandler(deps.Coordinator)
		syncGroup.Get("/status", syncHandler.Status)
		syncGroup.Post("/resync", syncHandler.Resync)
	}
}
