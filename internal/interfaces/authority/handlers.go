package authority

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/realtime"
)

// OnAddMovement registra el movimiento y difunde el eco. Un reenvío solo recibe el eco
// el emisor; un envío inválido se rechaza solo a él.
func (r *Router) OnAddMovement(ctx context.Context, p *realtime.Peer, m entity.Movement) {
	stored, inserted, err := r.svc.AddMovement(ctx, m)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidType) {
			r.counters.MovementAccepted("rejected")
			r.log.Warn().Err(err).Str("id", m.ID).Str("client_id", p.ClientID).Msg("movimiento rechazado")
			p.Send(realtime.EventMovementRejected, realtime.IDPayload{ID: m.ID, Reason: err.Error()})
			return
		}
		// Sin respuesta: el cliente reintenta al caducar la confirmación.
		r.log.Error().Err(err).Str("id", m.ID).Str("client_id", p.ClientID).Msg("no se pudo registrar el movimiento")
		return
	}
	echo := realtime.MovementEnvelope{Movement: realtime.ToMovementPayload(stored)}
	if !inserted {
		r.counters.MovementAccepted("duplicate")
		p.Send(realtime.EventMovementAdded, echo)
		return
	}
	r.counters.MovementAccepted("inserted")
	r.hub.Broadcast(realtime.EventMovementAdded, echo)
}

// OnRequestInventory responde al emisor con el inventario completo.
func (r *Router) OnRequestInventory(ctx context.Context, p *realtime.Peer) {
	snap, err := r.svc.Snapshot(ctx)
	if err != nil {
		r.log.Error().Err(err).Str("client_id", p.ClientID).Msg("no se pudo armar el inventario")
		return
	}
	p.Send(realtime.EventInventoryUpdated, realtime.ToInventoryPayload(snap))
}

func (r *Router) listMovements(w http.ResponseWriter, req *http.Request) {
	movs, err := r.svc.Movements(req.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	out := make([]realtime.MovementPayload, 0, len(movs))
	for _, m := range movs {
		out = append(out, realtime.ToMovementPayload(m))
	}
	respondJSON(w, http.StatusOK, out)
}

func (r *Router) getInventory(w http.ResponseWriter, req *http.Request) {
	snap, err := r.svc.Snapshot(req.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, realtime.ToInventoryPayload(snap))
}

// deleteMovement corrección administrativa: se elimina y se avisa a todos los clientes.
func (r *Router) deleteMovement(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	removed, err := r.svc.DeleteMovement(req.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "movimiento no encontrado")
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	n := r.hub.Broadcast(realtime.EventMovementDeleted, realtime.IDPayload{ID: removed.ID})
	r.log.Info().Str("id", removed.ID).Str("by", clientIDFrom(req.Context())).Int("peers", n).Msg("eliminación difundida")
	respondJSON(w, http.StatusOK, realtime.MovementEnvelope{Movement: realtime.ToMovementPayload(removed)})
}

type thresholdsBody struct {
	Unit             string          `json:"unit"`
	MinThreshold     decimal.Decimal `json:"minThreshold"`
	OptimalThreshold decimal.Decimal `json:"optimalThreshold"`
}

// setThresholds fija los umbrales y difunde la posición afectada como inventario parcial.
func (r *Router) setThresholds(w http.ResponseWriter, req *http.Request) {
	product := mux.Vars(req)["product"]
	var in thresholdsBody
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "cuerpo inválido")
		return
	}
	if _, err := r.svc.SetThresholds(req.Context(), product, in.Unit, in.MinThreshold, in.OptimalThreshold); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "VALIDATION", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	snap, err := r.svc.Snapshot(req.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	key := entity.ProductKey(product)
	for _, pos := range snap.Positions {
		if pos.ProductKey != key {
			continue
		}
		payload := realtime.ToPositionPayload(pos)
		r.hub.Broadcast(realtime.EventInventoryUpdated, realtime.InventoryPayload{
			Positions: []realtime.PositionPayload{payload},
		})
		respondJSON(w, http.StatusOK, payload)
		return
	}
	respondError(w, http.StatusInternalServerError, "INTERNAL", "posición no encontrada tras guardar umbrales")
}
