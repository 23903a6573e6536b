package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo implementación de MovementRepository sobre SQLite (usable con db o tx).
type MovementRepo struct {
	q querier
}

// NewMovementRepository construye el adaptador del libro.
func NewMovementRepository(q querier) *MovementRepo {
	return &MovementRepo{q: q}
}

const movementColumns = `local_id, id, remote_id, seq, type, product_name, product_key, category,
	quantity, unit, unit_price, movement_value, supplier, document_ref, lot, expiry, note, ts,
	origin, sync_status`

// Save inserta o reescribe el registro por local_id.
func (r *MovementRepo) Save(ctx context.Context, m entity.Movement) error {
	query := `
		INSERT INTO movements (` + movementColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			id = excluded.id, remote_id = excluded.remote_id, seq = excluded.seq, type = excluded.type,
			product_name = excluded.product_name, product_key = excluded.product_key,
			category = excluded.category, quantity = excluded.quantity, unit = excluded.unit,
			unit_price = excluded.unit_price, movement_value = excluded.movement_value,
			supplier = excluded.supplier, document_ref = excluded.document_ref, lot = excluded.lot,
			expiry = excluded.expiry, note = excluded.note, ts = excluded.ts,
			origin = excluded.origin, sync_status = excluded.sync_status`
	_, err := r.q.ExecContext(ctx, query,
		m.LocalID, m.ID, m.RemoteID, m.Seq, string(m.Type), m.Product.Name, m.ProductKey(), m.Product.Category,
		m.Quantity.String(), m.Unit, m.UnitPrice.String(), m.MovementValue.String(),
		m.Supplier, m.DocumentRef, m.Lot, nullTime(m.Expiry), m.Note, formatTime(m.Timestamp),
		string(m.Origin), string(m.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("save movement: %w", err)
	}
	return nil
}

// Delete elimina el registro; no falla si no existe.
func (r *MovementRepo) Delete(ctx context.Context, localID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM movements WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	return nil
}

// ListAll todos los registros en orden de llegada.
func (r *MovementRepo) ListAll(ctx context.Context) ([]entity.Movement, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+movementColumns+` FROM movements ORDER BY seq, local_id`)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var list []entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMovement(rows *sql.Rows) (entity.Movement, error) {
	var (
		m                     entity.Movement
		typ, origin, status   string
		qty, price, value, ts string
		expiry                sql.NullString
	)
	err := rows.Scan(
		&m.LocalID, &m.ID, &m.RemoteID, &m.Seq, &typ, &m.Product.Name, new(string), &m.Product.Category,
		&qty, &m.Unit, &price, &value, &m.Supplier, &m.DocumentRef, &m.Lot, &expiry, &m.Note, &ts,
		&origin, &status,
	)
	if err != nil {
		return entity.Movement{}, fmt.Errorf("scan movement: %w", err)
	}
	m.Type = entity.MovementType(typ)
	m.Origin = entity.Origin(origin)
	m.SyncStatus = entity.SyncStatus(status)
	if m.Quantity, err = parseDecimal(qty); err != nil {
		return entity.Movement{}, err
	}
	if m.UnitPrice, err = parseDecimal(price); err != nil {
		return entity.Movement{}, err
	}
	if m.MovementValue, err = parseDecimal(value); err != nil {
		return entity.Movement{}, err
	}
	if m.Timestamp, err = parseTime(ts); err != nil {
		return entity.Movement{}, err
	}
	if m.Expiry, err = parseNullTime(expiry); err != nil {
		return entity.Movement{}, err
	}
	return m, nil
}
