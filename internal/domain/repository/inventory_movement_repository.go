package repository

import (
	"context"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
)

// MovementRepository puerto de persistencia local del libro de movimientos (colección movements).
type MovementRepository interface {
	// Save inserta o reescribe el registro identificado por LocalID (alta, rebind, estado, reemplazo offline).
	Save(ctx context.Context, m entity.Movement) error
	Delete(ctx context.Context, localID string) error
	// ListAll devuelve todos los registros en orden de llegada (Seq).
	ListAll(ctx context.Context) ([]entity.Movement, error)
}
