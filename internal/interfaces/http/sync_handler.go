package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/magazzino-sync/internal/application/dto"
	"github.com/jhoicas/magazzino-sync/internal/application/syncengine"
)

// SyncHandler estado del canal con la autoridad.
type SyncHandler struct {
	coord *syncengine.Coordinator
}

// NewSyncHandler construye el handler.
func NewSyncHandler(coord *syncengine.Coordinator) *SyncHandler {
	return &SyncHandler{coord: coord}
}

// Status conexión, ciclo y conteos de la cola.
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	st := h.coord.Status()
	return c.JSON(dto.SyncStatusResponse{
		State:      string(st.State),
		Cycle:      st.Cycle,
		Total:      st.Total,
		Pending:    st.Pending,
		Sent:       st.Sent,
		Synced:     st.Synced,
		Failed:     st.Failed,
		LastSyncAt: st.LastSyncAt,
	})
}

// Resync pide un inventario completo a la autoridad.
func (h *SyncHandler) Resync(c *fiber.Ctx) error {
	queued := h.coord.RequestResync()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": queued})
}
