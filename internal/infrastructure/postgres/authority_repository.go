package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/repository"
)

var _ repository.AuthorityRepository = (*AuthorityRepo)(nil)

// AuthorityRepo libro autoritativo sobre PostgreSQL (usable con pool o tx).
type AuthorityRepo struct {
	q Querier
}

// NewAuthorityRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuthorityRepository(q Querier) *AuthorityRepo {
	return &AuthorityRepo{q: q}
}

const authorityColumns = `id, type, product_name, category, quantity, unit, unit_price, movement_value,
	supplier, document_ref, lot, expiry, note, ts, seq`

// Insert registra el movimiento. Un id repetido no es error: devuelve inserted=false.
func (r *AuthorityRepo) Insert(ctx context.Context, m entity.Movement) (bool, error) {
	query := `
		INSERT INTO authority_movements (id, type, product_name, product_key, category, quantity, unit,
			unit_price, movement_value, supplier, document_ref, lot, expiry, note, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.q.Exec(ctx, query,
		m.ID, string(m.Type), m.Product.Name, m.ProductKey(), nullIfEmpty(m.Product.Category),
		m.Quantity, nullIfEmpty(m.Unit), m.UnitPrice, m.MovementValue,
		nullIfEmpty(m.Supplier), nullIfEmpty(m.DocumentRef), nullIfEmpty(m.Lot), m.Expiry,
		nullIfEmpty(m.Note), m.Timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert authority movement: %w", err)
	}
	return true, nil
}

// GetByID devuelve nil, nil si no existe.
func (r *AuthorityRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	row := r.q.QueryRow(ctx, `SELECT `+authorityColumns+` FROM authority_movements WHERE id = $1`, id)
	m, err := scanAuthorityMovement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get authority movement: %w", err)
	}
	return &m, nil
}

// Delete elimina y devuelve el registro; nil, nil si no existía.
func (r *AuthorityRepo) Delete(ctx context.Context, id string) (*entity.Movement, error) {
	row := r.q.QueryRow(ctx, `DELETE FROM authority_movements WHERE id = $1 RETURNING `+authorityColumns, id)
	m, err := scanAuthorityMovement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("delete authority movement: %w", err)
	}
	return &m, nil
}

// ListAll todos los movimientos en orden de llegada.
func (r *AuthorityRepo) ListAll(ctx context.Context) ([]entity.Movement, error) {
	rows, err := r.q.Query(ctx, `SELECT `+authorityColumns+` FROM authority_movements ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list authority movements: %w", err)
	}
	defer rows.Close()

	var list []entity.Movement
	for rows.Next() {
		m, err := scanAuthorityMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan authority movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Thresholds umbrales por clave de producto.
func (r *AuthorityRepo) Thresholds(ctx context.Context) (map[string]entity.StockPosition, error) {
	rows, err := r.q.Query(ctx, `
		SELECT product_key, product_name, unit, min_threshold, optimal_threshold, updated_at
		FROM authority_thresholds`)
	if err != nil {
		return nil, fmt.Errorf("list thresholds: %w", err)
	}
	defer rows.Close()

	out := make(map[string]entity.StockPosition)
	for rows.Next() {
		var (
			p          entity.StockPosition
			name, unit *string
			updated    time.Time
		)
		if err := rows.Scan(&p.ProductKey, &name, &unit, &p.MinThreshold, &p.OptimalThreshold, &updated); err != nil {
			return nil, fmt.Errorf("scan threshold: %w", err)
		}
		p.ProductName, p.Unit, p.UpdatedAt = deref(name), deref(unit), updated
		out[p.ProductKey] = p
	}
	return out, rows.Err()
}

// SetThresholds inserta o actualiza los umbrales de un producto.
func (r *AuthorityRepo) SetThresholds(ctx context.Context, pos entity.StockPosition) error {
	query := `
		INSERT INTO authority_thresholds (product_key, product_name, unit, min_threshold, optimal_threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (product_key)
		DO UPDATE SET product_name = COALESCE(EXCLUDED.product_name, authority_thresholds.product_name),
			unit = COALESCE(EXCLUDED.unit, authority_thresholds.unit),
			min_threshold = EXCLUDED.min_threshold, optimal_threshold = EXCLUDED.optimal_threshold,
			updated_at = now()`
	_, err := r.q.Exec(ctx, query, pos.ProductKey, nullIfEmpty(pos.ProductName), nullIfEmpty(pos.Unit),
		pos.MinThreshold, pos.OptimalThreshold)
	if err != nil {
		return fmt.Errorf("set thresholds: %w", err)
	}
	return nil
}

func scanAuthorityMovement(row pgx.Row) (entity.Movement, error) {
	var (
		m                                     entity.Movement
		typ                                   string
		category, unit, supplier, doc, lot, n *string
	)
	err := row.Scan(&m.ID, &typ, &m.Product.Name, &category, &m.Quantity, &unit, &m.UnitPrice, &m.MovementValue,
		&supplier, &doc, &lot, &m.Expiry, &n, &m.Timestamp, &m.Seq)
	if err != nil {
		return entity.Movement{}, err
	}
	m.Type = entity.MovementType(typ)
	m.Product.Category = deref(category)
	m.Unit = deref(unit)
	m.Supplier = deref(supplier)
	m.DocumentRef = deref(doc)
	m.Lot = deref(lot)
	m.Note = deref(n)
	m.RemoteID = m.ID
	m.Origin = entity.OriginRemote
	m.SyncStatus = entity.SyncStatusSynced
	m.Timestamp = m.Timestamp.UTC()
	return m, nil
}
