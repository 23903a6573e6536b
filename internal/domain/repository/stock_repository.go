package repository

import (
	"context"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
)

// StockPositionRepository puerto para las posiciones derivadas (colección stockPositions, clave = producto).
type StockPositionRepository interface {
	Get(ctx context.Context, productKey string) (*entity.StockPosition, error)
	Upsert(ctx context.Context, pos entity.StockPosition) error
	// ReplaceAll sustituye todas las posiciones (snapshot completo o replay en frío).
	ReplaceAll(ctx context.Context, positions []entity.StockPosition) error
	List(ctx context.Context) ([]entity.StockPosition, error)
}
