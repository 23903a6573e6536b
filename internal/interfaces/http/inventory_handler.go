package http

import (
	"context"
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/magazzino-sync/internal/application/dto"
	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/internal/domain/inventory"
)

// ReplenishmentPDFGenerator genera la orden de reposición imprimible.
type ReplenishmentPDFGenerator interface {
	GenerateReplenishmentPDF(ctx context.Context, items []dto.ReplenishmentSuggestionDTO) ([]byte, error)
}

// InventoryHandler maneja las peticiones HTTP de movimientos e inventario del puesto local.
type InventoryHandler struct {
	svc *appinv.Service
	pdf ReplenishmentPDFGenerator
}

// NewInventoryHandler construye el handler. pdf puede ser nil.
func NewInventoryHandler(svc *appinv.Service, pdf ReplenishmentPDFGenerator) *InventoryHandler {
	return &InventoryHandler{svc: svc, pdf: pdf}
}

// RegisterMovement registra un movimiento local. La posición se actualiza al instante;
// el envío a la autoridad ocurre en segundo plano.
func (h *InventoryHandler) RegisterMovement(c *fiber.Ctx) error {
	var in dto.RegisterMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.svc.RegisterMovementFromRequest(c.Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// ReplaceMovement sustituye un movimiento que aún no salió hacia la autoridad.
func (h *InventoryHandler) ReplaceMovement(c *fiber.Ctx) error {
	var in dto.RegisterMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.svc.ReplaceMovementFromRequest(c.Context(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// ListMovements libro paginado. order=arrival (por defecto) | chronological.
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "paginación inválida"})
	}
	page.DefaultPage()

	order := inventory.OrderArrival
	switch c.Query("order", "arrival") {
	case "arrival":
	case "chronological":
		order = inventory.OrderChronological
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "order: arrival | chronological"})
	}

	all := h.svc.Movements(order)
	start := min(page.Offset, len(all))
	end := min(start+page.Limit, len(all))
	items := make([]dto.MovementResponse, 0, end-start)
	for _, m := range all[start:end] {
		items = append(items, appinv.ToMovementResponse(m))
	}
	return c.JSON(dto.MovementListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: len(all)},
	})
}

// GetMovement busca por id vigente o por id provisional.
func (h *InventoryHandler) GetMovement(c *fiber.Ctx) error {
	m, err := h.svc.Movement(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(appinv.ToMovementResponse(m))
}

// ListPositions todas las giacenze ordenadas por producto.
func (h *InventoryHandler) ListPositions(c *fiber.Ctx) error {
	positions := h.svc.Positions()
	out := make([]dto.StockPositionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, appinv.ToPositionResponse(p))
	}
	return c.JSON(out)
}

// GetPosition posición de un producto (acepta el nombre sin normalizar).
func (h *InventoryHandler) GetPosition(c *fiber.Ctx) error {
	pos, err := h.svc.Position(productParam(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(appinv.ToPositionResponse(pos))
}

// SetThresholds configura mínimo y óptimo de un producto.
func (h *InventoryHandler) SetThresholds(c *fiber.Ctx) error {
	var in dto.ThresholdsRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	pos, err := h.svc.SetThresholds(c.Context(), productParam(c), in.MinThreshold, in.OptimalThreshold)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(appinv.ToPositionResponse(pos))
}

// GetReplenishmentList productos bajo mínimo con la cantidad sugerida de pedido.
func (h *InventoryHandler) GetReplenishmentList(c *fiber.Ctx) error {
	list := h.svc.GenerateReplenishmentList()
	return c.JSON(fiber.Map{
		"total":          len(list),
		"replenishments": list,
	})
}

// GetReplenishmentPDF orden de reposición en PDF.
func (h *InventoryHandler) GetReplenishmentPDF(c *fiber.Ctx) error {
	doc, err := h.pdf.GenerateReplenishmentPDF(c.Context(), h.svc.GenerateReplenishmentList())
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="reposicion.pdf"`)
	return c.Send(doc)
}

// productParam nombre o clave del producto tal como llegó en la ruta.
func productParam(c *fiber.Ctx) string {
	raw := c.Params("key")
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}

// respondError traduce errores de dominio a dto.ErrorResponse.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidType), errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
