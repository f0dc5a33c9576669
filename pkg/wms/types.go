package wms

import (
	"fmt"
	"time"
)

// Method identifies the direction of a crane job.
type Method string

const (
	// MethodPut stores a basket onto its mapped shelf.
	MethodPut Method = "PUT"

	// MethodPick retrieves a basket from the shelf it occupies.
	MethodPick Method = "PICK"
)

// Digit returns the single-character method field used in the 20-char
// command string ("0" for PUT, "1" for PICK).
func (m Method) Digit() (string, error) {
	switch m {
	case MethodPut:
		return "0", nil
	case MethodPick:
		return "1", nil
	default:
		return "", fmt.Errorf("unknown method: %q", string(m))
	}
}

// Validate checks that the method is one of the two known directions.
func (m Method) Validate() error {
	_, err := m.Digit()
	return err
}

// Shelf is one storage cell in the rack. Invariant: Active is true exactly
// when BasketID is non-empty.
type Shelf struct {
	ID         int64
	Column     int
	Row        int
	Depth      int
	Zone       int
	CanUse     bool   // administrative availability flag
	BasketID   string // empty when vacant
	Active     bool
	LastUpdate time.Time
}

// Job is one queued crane command. Jobs live in either the pick or the put
// queue until the mover deletes them on protocol ACK.
type Job struct {
	ID        int64
	Basket    string
	X, Y, Z   int
	CreatedAt time.Time
}

// Mapping is the static basket -> home shelf assignment. It is independent
// of occupancy: the mapping says where a basket should go, the shelf table
// says where it currently is.
type Mapping struct {
	ShelfID int64
	X, Y, Z int
}

// OperationRecord is one append-only audit row describing an occupancy
// change. Records are never mutated or deleted.
type OperationRecord struct {
	ID        int64     `json:"id"`
	ShelfID   int64     `json:"shelf_id"`
	BasketID  string    `json:"basket_id"`
	Operation Method    `json:"operation"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// MoveResult reports the shelves touched by a transactional put.
type MoveResult struct {
	ClearedFrom []int64 `json:"cleared_from"`
	PlacedTo    int64   `json:"placed_to"`
}

// CycleResult is delivered to the mover's completion callback after each
// command cycle. Success reflects the occupancy commit made on ACK, not
// the physical completion handshake.
type CycleResult struct {
	Method  Method  `json:"method"`
	Basket  string  `json:"basket"`
	Seconds float64 `json:"seconds"`
	Success bool    `json:"success"`
}
