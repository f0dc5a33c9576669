package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/siamwms/asrsd/pkg/wms"
)

// MovePut places basket onto the destination shelf within one transaction:
// every other shelf recorded as holding the basket is vacated first
// (self-healing against stale occupancy), then the destination is checked.
// A destination already holding a different basket fails with ErrConflict
// and rolls everything back unless allowOverwrite is set. A history row is
// written in the same transaction as the occupancy change.
//
// Placing a basket on the shelf it already occupies is not an error.
func (s *Store) MovePut(ctx context.Context, shelfID int64, basketID string, allowOverwrite bool) (*wms.MoveResult, error) {
	bid, err := wms.NormalizeBasketID(basketID)
	if err != nil {
		return nil, fmt.Errorf("move put: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin move put: %w", err)
	}
	defer tx.Rollback()

	ts := now()

	// Vacate every shelf the basket is recorded on, collecting their ids.
	rows, err := tx.QueryContext(ctx, "SELECT shelf_id FROM shelf_data WHERE basket_id = ?", bid)
	if err != nil {
		return nil, fmt.Errorf("find stale occupancy: %w", err)
	}
	clearedFrom := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stale occupancy: %w", err)
		}
		clearedFrom = append(clearedFrom, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("read stale occupancy: %w", err)
	}
	rows.Close()

	if len(clearedFrom) > 0 {
		if _, err := tx.ExecContext(ctx,
			"UPDATE shelf_data SET basket_id = NULL, active = 0, lastupdate_time = ? WHERE basket_id = ?",
			ts, bid); err != nil {
			return nil, fmt.Errorf("clear stale occupancy: %w", err)
		}
	}

	// Inspect the destination.
	var destBasket sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT basket_id FROM shelf_data WHERE shelf_id = ?", shelfID).Scan(&destBasket)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shelf %d: %w", shelfID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("inspect destination shelf %d: %w", shelfID, err)
	}

	if destBasket.Valid && destBasket.String != bid {
		if !allowOverwrite {
			return nil, fmt.Errorf("shelf %d holds %s: %w", shelfID, destBasket.String, ErrConflict)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE shelf_data SET basket_id = NULL, active = 0, lastupdate_time = ? WHERE shelf_id = ?",
			ts, shelfID); err != nil {
			return nil, fmt.Errorf("overwrite destination shelf %d: %w", shelfID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE shelf_data SET basket_id = ?, active = 1, lastupdate_time = ? WHERE shelf_id = ?",
		bid, ts, shelfID); err != nil {
		return nil, fmt.Errorf("place basket on shelf %d: %w", shelfID, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO operation_history (shelf_id, basket_id, operation_type, status, timestamp) VALUES (?, ?, 'PUT', 'success', ?)",
		shelfID, bid, ts); err != nil {
		return nil, fmt.Errorf("record put history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit move put: %w", err)
	}

	return &wms.MoveResult{ClearedFrom: clearedFrom, PlacedTo: shelfID}, nil
}

// MarkPick atomically vacates the given shelf and records the pick in the
// operation history. Picking an already-empty shelf is a no-op with no
// history row.
func (s *Store) MarkPick(ctx context.Context, shelfID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark pick: %w", err)
	}
	defer tx.Rollback()

	var oldBasket sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT basket_id FROM shelf_data WHERE shelf_id = ?", shelfID).Scan(&oldBasket)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("shelf %d: %w", shelfID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("inspect shelf %d: %w", shelfID, err)
	}

	ts := now()
	if _, err := tx.ExecContext(ctx,
		"UPDATE shelf_data SET basket_id = NULL, active = 0, lastupdate_time = ? WHERE shelf_id = ?",
		ts, shelfID); err != nil {
		return fmt.Errorf("vacate shelf %d: %w", shelfID, err)
	}

	if oldBasket.Valid && oldBasket.String != "" {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO operation_history (shelf_id, basket_id, operation_type, status, timestamp) VALUES (?, ?, 'PICK', 'success', ?)",
			shelfID, oldBasket.String, ts); err != nil {
			return fmt.Errorf("record pick history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark pick: %w", err)
	}
	return nil
}

// MappingForBasket returns the basket's static home-shelf assignment along
// with the shelf's grid coordinates. Returns ErrNotFound if the basket has
// no mapping (or the mapping references no shelf).
func (s *Store) MappingForBasket(ctx context.Context, basketID string) (*wms.Mapping, error) {
	var m wms.Mapping
	err := s.db.QueryRowContext(ctx, `
		SELECT b.shelf_id, sh.x_column, sh.y_row, sh.z_depth
		FROM basket_data b
		JOIN shelf_data sh ON sh.shelf_id = b.shelf_id
		WHERE b.basket_id = ?`, basketID).Scan(&m.ShelfID, &m.X, &m.Y, &m.Z)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mapping for %s: %w", basketID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mapping for %s: %w", basketID, err)
	}
	return &m, nil
}

// ShelfOf returns the shelf the basket currently occupies, independent of
// its static mapping. Returns ErrNotFound if the basket is not on any shelf.
func (s *Store) ShelfOf(ctx context.Context, basketID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT shelf_id FROM shelf_data WHERE basket_id = ?", basketID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("occupancy of %s: %w", basketID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("occupancy of %s: %w", basketID, err)
	}
	return id, nil
}

// ShelfCanUse reports the administrative availability flag. A missing shelf
// is treated as unusable, not as an error.
func (s *Store) ShelfCanUse(ctx context.Context, shelfID int64) (bool, error) {
	var canUse bool
	err := s.db.QueryRowContext(ctx, "SELECT can_use FROM shelf_data WHERE shelf_id = ?", shelfID).Scan(&canUse)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("shelf %d availability: %w", shelfID, err)
	}
	return canUse, nil
}

// Shelf returns the full state of one shelf.
func (s *Store) Shelf(ctx context.Context, shelfID int64) (*wms.Shelf, error) {
	var (
		sh         wms.Shelf
		basket     sql.NullString
		lastUpdate sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT shelf_id, x_column, y_row, z_depth, zone, can_use, basket_id, active, lastupdate_time
		FROM shelf_data WHERE shelf_id = ?`, shelfID).
		Scan(&sh.ID, &sh.Column, &sh.Row, &sh.Depth, &sh.Zone, &sh.CanUse, &basket, &sh.Active, &lastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shelf %d: %w", shelfID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("shelf %d: %w", shelfID, err)
	}
	sh.BasketID = basket.String
	if lastUpdate.Valid {
		sh.LastUpdate = parseTime(lastUpdate.String)
	}
	return &sh, nil
}

// UpsertShelf creates or updates a shelf row. Used by provisioning and
// tests; occupancy fields are preserved on update.
func (s *Store) UpsertShelf(ctx context.Context, sh wms.Shelf) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shelf_data (shelf_id, x_column, y_row, z_depth, zone, can_use)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(shelf_id) DO UPDATE SET
			x_column = excluded.x_column,
			y_row    = excluded.y_row,
			z_depth  = excluded.z_depth,
			zone     = excluded.zone,
			can_use  = excluded.can_use`,
		sh.ID, sh.Column, sh.Row, sh.Depth, sh.Zone, sh.CanUse)
	if err != nil {
		return fmt.Errorf("upsert shelf %d: %w", sh.ID, err)
	}
	return nil
}

// UpsertMapping assigns a basket to its home shelf, replacing any previous
// assignment. The basket id is normalized before writing.
func (s *Store) UpsertMapping(ctx context.Context, basketID string, shelfID int64) error {
	bid, err := wms.NormalizeBasketID(basketID)
	if err != nil {
		return fmt.Errorf("upsert mapping: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO basket_data (basket_id, shelf_id) VALUES (?, ?)
		ON CONFLICT(basket_id) DO UPDATE SET shelf_id = excluded.shelf_id`,
		bid, shelfID)
	if err != nil {
		return fmt.Errorf("upsert mapping %s -> %d: %w", bid, shelfID, err)
	}
	return nil
}

// History returns the most recent operation records, newest first. This is
// the operator-facing reconciliation audit for cycles whose physical motion
// may have failed after the occupancy commit.
func (s *Store) History(ctx context.Context, limit int) ([]wms.OperationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shelf_id, basket_id, operation_type, status, timestamp
		FROM operation_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	var records []wms.OperationRecord
	for rows.Next() {
		var (
			r      wms.OperationRecord
			basket sql.NullString
			op     string
			ts     string
		)
		if err := rows.Scan(&r.ID, &r.ShelfID, &basket, &op, &r.Status, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.BasketID = basket.String
		r.Operation = wms.Method(op)
		r.Timestamp = parseTime(ts)
		records = append(records, r)
	}
	return records, rows.Err()
}
