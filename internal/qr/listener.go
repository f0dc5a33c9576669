// Package qr watches the PLC's basket-scanner handshake and turns valid
// scans into put jobs. It is a pure producer: it owns its own PLC
// connection and never touches the command registers.
package qr

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/siamwms/asrsd/internal/plc"
	"github.com/siamwms/asrsd/internal/store"
	"github.com/siamwms/asrsd/pkg/wms"
)

// Listener polls the scanner flag and enqueues a put job for each new
// valid basket id. Edge detection on the flag plus a current-code latch
// keeps one physical scan from producing multiple jobs.
type Listener struct {
	bus   plc.Bus
	nodes plc.Nodes
	store *store.Store

	interval   time.Duration
	ackPulse   time.Duration
	errorPulse time.Duration

	mu        sync.Mutex
	lastFlag  bool
	currentQR string
}

// NewListener polls at interval; 0 means the plant default of 500ms.
func NewListener(bus plc.Bus, nodes plc.Nodes, st *store.Store, interval time.Duration) *Listener {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Listener{
		bus:        bus,
		nodes:      nodes,
		store:      st,
		interval:   interval,
		ackPulse:   100 * time.Millisecond,
		errorPulse: 200 * time.Millisecond,
	}
}

// Run polls until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	log.Printf("[QR] Listener started")
	for ctx.Err() == nil {
		l.poll(ctx)
		select {
		case <-ctx.Done():
		case <-time.After(l.interval):
		}
	}
	log.Printf("[QR] Listener stopped")
}

func (l *Listener) poll(ctx context.Context) {
	flag, err := l.bus.ReadBool(ctx, l.nodes.SendBasketQR)
	if err != nil {
		return
	}

	l.mu.Lock()
	lastFlag := l.lastFlag
	l.lastFlag = flag
	l.mu.Unlock()

	// Falling edge: the scanner finished; latch opens for the next scan.
	if !flag && lastFlag {
		l.mu.Lock()
		l.currentQR = ""
		l.mu.Unlock()
		log.Printf("[QR] Flag dropped, reset states")
		return
	}
	if !flag {
		return
	}

	code, err := l.bus.ReadString(ctx, l.nodes.BasketQR)
	if err != nil {
		log.Printf("[QR] Read code failed: %v", err)
		return
	}
	if code == "" {
		return
	}

	l.mu.Lock()
	duplicate := l.currentQR == code
	if !duplicate {
		l.currentQR = code
	}
	l.mu.Unlock()
	if duplicate {
		return
	}

	log.Printf("[QR] Processing new code: %s", code)
	if !wms.IsNormalizedBasketID(code) {
		log.Printf("[QR] Malformed code %q", code)
		l.pulseAck(ctx, l.errorPulse)
		return
	}

	if l.process(ctx, code) {
		l.pulseAck(ctx, l.ackPulse)
	}
}

// process decides whether the scan becomes a put job. Returns true when
// the PLC should get the normal acknowledge pulse.
func (l *Listener) process(ctx context.Context, code string) bool {
	mapping, err := l.store.MappingForBasket(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[QR] Basket %s not registered; add basket data before use", code)
		l.pulseAck(ctx, l.errorPulse)
		return false
	}
	if err != nil {
		log.Printf("[QR] Mapping lookup for %s: %v", code, err)
		l.pulseAck(ctx, l.errorPulse)
		return false
	}

	// A basket already on a shelf must not be put again.
	occupied, err := l.store.ShelfOf(ctx, code)
	if err == nil {
		if occupied == mapping.ShelfID {
			log.Printf("[QR] Basket %s already stored on shelf %d", code, occupied)
		} else {
			log.Printf("[QR] Basket %s recorded on shelf %d but mapped to %d", code, occupied, mapping.ShelfID)
		}
		return false
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("[QR] Occupancy check for %s: %v", code, err)
		return false
	}

	sh, err := l.store.Shelf(ctx, mapping.ShelfID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[QR] Shelf %d not found", mapping.ShelfID)
		return false
	}
	if err != nil {
		log.Printf("[QR] Shelf %d lookup: %v", mapping.ShelfID, err)
		return false
	}
	if sh.Active || sh.BasketID != "" {
		log.Printf("[QR] Shelf %d occupied by %s", mapping.ShelfID, sh.BasketID)
		return false
	}
	if !sh.CanUse {
		log.Printf("[QR] Shelf %d cannot be used now", mapping.ShelfID)
		return false
	}

	pending, err := l.store.HasPendingPut(ctx, code)
	if err != nil {
		log.Printf("[QR] Pending-put check for %s: %v", code, err)
		return false
	}
	if pending {
		log.Printf("[QR] Duplicate put ignored for %s", code)
		return false
	}

	// A busy crane means a cycle is in flight; defer rather than disturb.
	// Read failures count as ready so a flaky flag never blocks intake.
	if ready, err := l.bus.ReadBool(ctx, l.nodes.Ready); err == nil && !ready {
		log.Printf("[QR] System busy, skipping enqueue for %s", code)
		return false
	}

	if _, err := l.store.EnqueuePut(ctx, code, mapping.X, mapping.Y, mapping.Z); err != nil {
		log.Printf("[QR] Enqueue put for %s: %v", code, err)
		return false
	}
	log.Printf("[QR] Added %s to put queue for shelf %d", code, mapping.ShelfID)
	return true
}

func (l *Listener) pulseAck(ctx context.Context, width time.Duration) {
	if err := l.bus.WriteBool(ctx, l.nodes.ReceiveQR, true); err != nil {
		log.Printf("[QR] Ack raise failed: %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(width):
	}
	if err := l.bus.WriteBool(ctx, l.nodes.ReceiveQR, false); err != nil {
		log.Printf("[QR] Ack drop failed: %v", err)
	}
}

// ResetState clears the edge-detection latch. Exposed to operators through
// the system reset endpoint.
func (l *Listener) ResetState() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastFlag = false
	l.currentQR = ""
	log.Printf("[QR] State reset complete")
}
