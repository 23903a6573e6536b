package inventory

import (
	"context"

	"github.com/jhoicas/magazzino-sync/internal/application/dto"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// RegisterMovementFromRequest adapta el request HTTP al caso de uso Submit.
func (s *Service) RegisterMovementFromRequest(ctx context.Context, in dto.RegisterMovementRequest) (dto.MovementResponse, error) {
	m, err := s.Submit(ctx, ToMovementRequest(in))
	if err != nil {
		return dto.MovementResponse{}, err
	}
	return ToMovementResponse(m), nil
}

// ReplaceMovementFromRequest adapta el request HTTP al caso de uso ReplacePending.
func (s *Service) ReplaceMovementFromRequest(ctx context.Context, id string, in dto.RegisterMovementRequest) (dto.MovementResponse, error) {
	m, err := s.ReplacePending(ctx, id, ToMovementRequest(in))
	if err != nil {
		return dto.MovementResponse{}, err
	}
	return ToMovementResponse(m), nil
}

// ToMovementRequest convierte el body HTTP en la petición de dominio.
func ToMovementRequest(in dto.RegisterMovementRequest) entity.MovementRequest {
	req := entity.MovementRequest{
		Type:        entity.MovementType(in.Type),
		Product:     entity.Product{Name: in.ProductName, Category: in.Category},
		Quantity:    in.Quantity,
		Unit:        in.Unit,
		UnitPrice:   in.UnitPrice,
		Supplier:    in.Supplier,
		DocumentRef: in.DocumentRef,
		Lot:         in.Lot,
		Expiry:      in.Expiry,
		Note:        in.Note,
	}
	if in.Timestamp != nil {
		req.Timestamp = *in.Timestamp
	}
	return req
}

// ToMovementResponse proyección del movimiento para la UI.
func ToMovementResponse(m entity.Movement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:            m.ID,
		LocalID:       m.LocalID,
		RemoteID:      m.RemoteID,
		Type:          string(m.Type),
		ProductName:   m.Product.Name,
		ProductKey:    m.ProductKey(),
		Category:      m.Product.Category,
		Quantity:      m.Quantity,
		Unit:          m.Unit,
		UnitPrice:     m.UnitPrice,
		MovementValue: m.MovementValue,
		Supplier:      m.Supplier,
		DocumentRef:   m.DocumentRef,
		Lot:           m.Lot,
		Expiry:        m.Expiry,
		Note:          m.Note,
		Timestamp:     m.Timestamp,
		Origin:        string(m.Origin),
		SyncStatus:    string(m.SyncStatus),
		Seq:           m.Seq,
	}
}

// ToPositionResponse proyección de la posición para la UI.
func ToPositionResponse(p entity.StockPosition) dto.StockPositionResponse {
	out := dto.StockPositionResponse{
		ProductKey:          p.ProductKey,
		ProductName:         p.ProductName,
		Category:            p.Category,
		Unit:                p.Unit,
		QuantityOnHand:      p.QuantityOnHand,
		WeightedAverageCost: p.WeightedAverageCost,
		StockValue:          p.StockValue(),
		MinThreshold:        p.MinThreshold,
		OptimalThreshold:    p.OptimalThreshold,
		BelowMin:            p.BelowMin(),
		UpdatedAt:           p.UpdatedAt,
	}
	if p.LastMovement != nil {
		out.LastMovement = &dto.LastMovementDTO{
			Timestamp: p.LastMovement.Timestamp,
			Type:      string(p.LastMovement.Type),
			Quantity:  p.LastMovement.Quantity,
		}
	}
	return out
}

// GenerateReplenishmentList productos bajo mínimo con la cantidad sugerida para volver al óptimo
// (o al mínimo si no hay óptimo configurado), priorizados por gravedad.
func (s *Service) GenerateReplenishmentList() []dto.ReplenishmentSuggestionDTO {
	positions := s.Replenishment()
	out := make([]dto.ReplenishmentSuggestionDTO, 0, len(positions))
	for i, p := range positions {
		target := p.OptimalThreshold
		if target.LessThan(p.MinThreshold) {
			target = p.MinThreshold
		}
		qty := target.Sub(p.QuantityOnHand)
		if qty.IsNegative() {
			qty = decimal.Zero
		}
		out = append(out, dto.ReplenishmentSuggestionDTO{
			ProductKey:         p.ProductKey,
			ProductName:        p.ProductName,
			Unit:               p.Unit,
			CurrentStock:       p.QuantityOnHand,
			MinThreshold:       p.MinThreshold,
			OptimalThreshold:   p.OptimalThreshold,
			SuggestedOrderQty:  qty,
			UnitCost:           p.WeightedAverageCost,
			EstimatedOrderCost: qty.Mul(p.WeightedAverageCost),
			Severity:           string(inventory.SeverityFor(p.QuantityOnHand, p.MinThreshold)),
			Priority:           i + 1,
		})
	}
	return out
}
