package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/repository"
)

var _ repository.StockPositionRepository = (*StockPositionRepo)(nil)

// StockPositionRepo implementación de StockPositionRepository sobre SQLite.
type StockPositionRepo struct {
	q querier
}

// NewStockPositionRepository construye el adaptador de posiciones.
func NewStockPositionRepository(q querier) *StockPositionRepo {
	return &StockPositionRepo{q: q}
}

const positionColumns = `product_key, product_name, category, unit, quantity_on_hand,
	weighted_average_cost, min_threshold, optimal_threshold, last_movement_ts,
	last_movement_type, last_movement_qty, updated_at`

// Get devuelve nil, nil si el producto no tiene posición.
func (r *StockPositionRepo) Get(ctx context.Context, productKey string) (*entity.StockPosition, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM stock_positions WHERE product_key = ?`, productKey)
	p, err := scanPosition(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Upsert inserta o actualiza la posición del producto.
func (r *StockPositionRepo) Upsert(ctx context.Context, pos entity.StockPosition) error {
	query := `
		INSERT INTO stock_positions (` + positionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_key) DO UPDATE SET
			product_name = excluded.product_name, category = excluded.category, unit = excluded.unit,
			quantity_on_hand = excluded.quantity_on_hand,
			weighted_average_cost = excluded.weighted_average_cost,
			min_threshold = excluded.min_threshold, optimal_threshold = excluded.optimal_threshold,
			last_movement_ts = excluded.last_movement_ts, last_movement_type = excluded.last_movement_type,
			last_movement_qty = excluded.last_movement_qty, updated_at = excluded.updated_at`
	var (
		lastTS   sql.NullString
		lastType string
		lastQty  = "0"
	)
	if pos.LastMovement != nil {
		lastTS = nullTime(&pos.LastMovement.Timestamp)
		lastType = string(pos.LastMovement.Type)
		lastQty = pos.LastMovement.Quantity.String()
	}
	_, err := r.q.ExecContext(ctx, query,
		pos.ProductKey, pos.ProductName, pos.Category, pos.Unit, pos.QuantityOnHand.String(),
		pos.WeightedAverageCost.String(), pos.MinThreshold.String(), pos.OptimalThreshold.String(),
		lastTS, lastType, lastQty, nullTime(&pos.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert stock position: %w", err)
	}
	return nil
}

// ReplaceAll sustituye todas las posiciones.
func (r *StockPositionRepo) ReplaceAll(ctx context.Context, positions []entity.StockPosition) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM stock_positions`); err != nil {
		return fmt.Errorf("clear stock positions: %w", err)
	}
	for _, p := range positions {
		if err := r.Upsert(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// List todas las posiciones ordenadas por clave.
func (r *StockPositionRepo) List(ctx context.Context) ([]entity.StockPosition, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+positionColumns+` FROM stock_positions ORDER BY product_key`)
	if err != nil {
		return nil, fmt.Errorf("list stock positions: %w", err)
	}
	defer rows.Close()

	var list []entity.StockPosition
	for rows.Next() {
		p, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func scanPosition(scan func(dest ...any) error) (entity.StockPosition, error) {
	var (
		p                    entity.StockPosition
		qty, wac, minT, optT string
		lastTS, updated      sql.NullString
		lastType, lastQty    string
	)
	if err := scan(&p.ProductKey, &p.ProductName, &p.Category, &p.Unit, &qty, &wac, &minT, &optT,
		&lastTS, &lastType, &lastQty, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan stock position: %w", err)
	}
	var err error
	if p.QuantityOnHand, err = parseDecimal(qty); err != nil {
		return p, err
	}
	if p.WeightedAverageCost, err = parseDecimal(wac); err != nil {
		return p, err
	}
	if p.MinThreshold, err = parseDecimal(minT); err != nil {
		return p, err
	}
	if p.OptimalThreshold, err = parseDecimal(optT); err != nil {
		return p, err
	}
	if ts, err := parseNullTime(lastTS); err != nil {
		return p, err
	} else if ts != nil {
		q, err := parseDecimal(lastQty)
		if err != nil {
			return p, err
		}
		p.LastMovement = &entity.LastMovement{Timestamp: *ts, Type: entity.MovementType(lastType), Quantity: q}
	}
	if u, err := parseNullTime(updated); err != nil {
		return p, err
	} else if u != nil {
		p.UpdatedAt = *u
	}
	return p, nil
}
