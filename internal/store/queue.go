package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/siamwms/asrsd/pkg/wms"
)

func queueTable(method wms.Method) (string, error) {
	switch method {
	case wms.MethodPick:
		return "queue_pick", nil
	case wms.MethodPut:
		return "queue_put", nil
	default:
		return "", fmt.Errorf("unknown queue method: %q", string(method))
	}
}

// EnqueuePick appends a pick job and returns its queue id.
func (s *Store) EnqueuePick(ctx context.Context, basket string, x, y, z int) (int64, error) {
	return s.enqueue(ctx, "queue_pick", basket, x, y, z)
}

// EnqueuePut appends a put job and returns its queue id.
func (s *Store) EnqueuePut(ctx context.Context, basket string, x, y, z int) (int64, error) {
	return s.enqueue(ctx, "queue_put", basket, x, y, z)
}

func (s *Store) enqueue(ctx context.Context, table, basket string, x, y, z int) (int64, error) {
	bid, err := wms.NormalizeBasketID(basket)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (basket, x, y, z) VALUES (?, ?, ?, ?)", table),
		bid, x, y, z)
	if err != nil {
		return 0, fmt.Errorf("enqueue %s into %s: %w", bid, table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue %s into %s: %w", bid, table, err)
	}
	return id, nil
}

// NextWindow reads the oldest limitEach jobs from each queue in creation
// order. The scheduler scans these windows; rows are only removed on
// protocol ACK or when pruned as unmappable.
func (s *Store) NextWindow(ctx context.Context, limitEach int) (picks, puts []wms.Job, err error) {
	picks, err = s.readQueue(ctx, "queue_pick", limitEach)
	if err != nil {
		return nil, nil, err
	}
	puts, err = s.readQueue(ctx, "queue_put", limitEach)
	if err != nil {
		return nil, nil, err
	}
	return picks, puts, nil
}

func (s *Store) readQueue(ctx context.Context, table string, limit int) ([]wms.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, basket, x, y, z, created_at FROM %s ORDER BY created_at ASC, id ASC LIMIT ?", table),
		limit)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	var jobs []wms.Job
	for rows.Next() {
		var (
			j  wms.Job
			ts string
		)
		if err := rows.Scan(&j.ID, &j.Basket, &j.X, &j.Y, &j.Z, &ts); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		j.CreatedAt = parseTime(ts)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// DeleteJob removes one queue row. Called by the mover immediately on ACK,
// and by the scheduler when pruning rows with no mapping.
func (s *Store) DeleteJob(ctx context.Context, method wms.Method, id int64) error {
	table, err := queueTable(method)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id); err != nil {
		return fmt.Errorf("delete job %d from %s: %w", id, table, err)
	}
	return nil
}

// HasPendingPut reports whether the basket already has a queued put job.
// Used by the QR listener to suppress duplicate scans.
func (s *Store) HasPendingPut(ctx context.Context, basket string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM queue_put WHERE basket = ? LIMIT 1", basket).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check pending put for %s: %w", basket, err)
	}
	return true, nil
}

// ClearQueues removes all queued (not in-flight) jobs from both queues.
// Administrative operation; an in-flight cycle is unaffected because its
// row was already deleted on ACK.
func (s *Store) ClearQueues(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM queue_pick"); err != nil {
		return fmt.Errorf("clear pick queue: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM queue_put"); err != nil {
		return fmt.Errorf("clear put queue: %w", err)
	}
	return nil
}
