package mover

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrCommandInFlight is returned by ResetCommand while a command cycle
// holds the command lock.
var ErrCommandInFlight = errors.New("command cycle in flight")

// WatchClearRequests services the PLC's out-of-band clear handshake. The
// reply pulse is unconditional and lock-free; the PLC expects it within a
// poll tick even when a 120s command cycle is running. The register clear
// itself takes the command lock non-blockingly. When the lock is held, a
// pending flag remembers the request and the clear is applied on a later
// tick, once the request line has dropped and the lock is free.
//
// Blocks until ctx is cancelled.
func (m *Mover) WatchClearRequests(ctx context.Context) {
	log.Printf("[Mover] Clear-request watch started")
	ticker := time.NewTicker(m.timings.ClearPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Mover] Clear-request watch stopped")
			return
		case <-ticker.C:
		}

		req, err := m.session.bus.ReadBool(ctx, m.session.nodes.ClearRequest)
		if err != nil {
			continue
		}

		if req {
			m.session.pulse(ctx, m.session.nodes.ClearReply)
			log.Printf("[Mover] PLC requested clear; replied")

			if m.cmdMu.TryLock() {
				m.session.clearCommandRegisters(ctx)
				m.pendingClear.Store(false)
				m.cmdMu.Unlock()
				log.Printf("[Mover] Cleared command registers on PLC request")
			} else {
				m.pendingClear.Store(true)
			}
			continue
		}

		if m.pendingClear.Load() && m.cmdMu.TryLock() {
			m.session.clearCommandRegisters(ctx)
			m.pendingClear.Store(false)
			m.cmdMu.Unlock()
			log.Printf("[Mover] Cleared pending command registers")
		}
	}
}

// PendingClear reports whether a clear request arrived during a command
// cycle and has not yet been applied.
func (m *Mover) PendingClear() bool {
	return m.pendingClear.Load()
}
