package repository

import (
	"context"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
)

// AuthorityRepository puerto del almacén autoritativo (servidor) de movimientos y umbrales.
type AuthorityRepository interface {
	// Insert es idempotente por ID: devuelve inserted=false si el movimiento ya existía.
	Insert(ctx context.Context, m entity.Movement) (inserted bool, err error)
	GetByID(ctx context.Context, id string) (*entity.Movement, error)
	// Delete devuelve nil, nil si el movimiento no existe.
	Delete(ctx context.Context, id string) (*entity.Movement, error)
	ListAll(ctx context.Context) ([]entity.Movement, error)
	// Thresholds umbrales configurados por producto en el servidor (puede estar vacío).
	Thresholds(ctx context.Context) (map[string]entity.StockPosition, error)
	SetThresholds(ctx context.Context, pos entity.StockPosition) error
}
