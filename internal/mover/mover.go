// Package mover drives the ASRS crane: it selects the next queued job,
// encodes it into the fixed-width PLC command, runs the send/ack/complete
// handshake, and commits the resulting occupancy change. One command is in
// flight at a time, guarded by a single lock shared with the clear-request
// reactor.
package mover

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/siamwms/asrsd/internal/store"
	"github.com/siamwms/asrsd/pkg/wms"
)

// Mover owns the command-channel half of the PLC session. All register
// writes for a command cycle happen under cmdMu; the clear-request reactor
// acquires the same lock non-blockingly.
type Mover struct {
	session *Session
	store   *store.Store
	tracker *PositionTracker
	timings Timings

	cmdMu        sync.Mutex
	pendingClear atomic.Bool

	seq int

	mu       sync.Mutex
	lastPut  *float64
	lastPick *float64

	// OnCycleDone, if set, receives the result of every finished cycle.
	// Called outside the command lock is NOT guaranteed; keep it fast.
	OnCycleDone func(wms.CycleResult)
}

// New assembles a mover around a connected session.
func New(session *Session, st *store.Store, tracker *PositionTracker) *Mover {
	return &Mover{
		session: session,
		store:   st,
		tracker: tracker,
		timings: session.timings,
	}
}

// Run is the outer poll/select/execute loop. It blocks until ctx is
// cancelled; an in-flight cycle runs to completion or timeout before the
// cancellation is honored.
func (m *Mover) Run(ctx context.Context) {
	log.Printf("[Mover] Loop started")
	m.session.InitOutputs(ctx)

	for ctx.Err() == nil {
		m.tracker.Update(ctx, m.session.bus, m.session.nodes)

		method, job, mapping, err := m.selectNext(ctx, commandWindow)
		if err != nil {
			log.Printf("[Mover] Scheduler error: %v", err)
			sleep(ctx, m.timings.IdleSleep)
			continue
		}
		if job == nil {
			sleep(ctx, m.timings.IdleSleep)
			continue
		}

		cmd, err := wms.EncodeCommand(m.seq, method, mapping.X, mapping.Y, mapping.Z, job.Basket)
		if err != nil {
			// A job that cannot encode can never execute; drop it.
			log.Printf("[Mover] Unencodable job %d (%s %s): %v", job.ID, method, job.Basket, err)
			if err := m.store.DeleteJob(ctx, method, job.ID); err != nil {
				log.Printf("[Mover] Prune unencodable job %d: %v", job.ID, err)
			}
			continue
		}

		if m.SendJob(ctx, cmd, method, *job, mapping.ShelfID) {
			m.seq++
		} else {
			sleep(ctx, m.timings.FailureBackoff)
		}
	}
	log.Printf("[Mover] Loop stopped")
}

// SendJob executes one full command cycle and reports whether the job
// succeeded. Success is decided when the occupancy commit lands after the
// PLC's ACK; a later completion timeout does not revoke it. Every failure
// path returns false rather than an error; the caller's policy is back off
// and try the next job.
func (m *Mover) SendJob(ctx context.Context, cmd string, method wms.Method, job wms.Job, shelfID int64) bool {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	start := time.Now()
	cycleID := uuid.NewString()
	success := false

	if !m.session.SystemReady(ctx) {
		log.Printf("[Mover] System not ready/auto/alarm; skip")
		return false
	}

	// Clear prior handshake state. A stuck ack or complete line from the
	// previous cycle would be misread as progress on this one.
	cleared := false
	for attempt := 0; attempt < m.timings.ClearAttempts; attempt++ {
		ackLow := m.session.waitBool(ctx, m.session.nodes.Ack, false, m.timings.ClearWait)
		completeLow := m.session.waitBool(ctx, m.session.nodes.Complete, false, m.timings.ClearWait)
		if ackLow && completeLow {
			cleared = true
			break
		}
		m.session.clearCommandRegisters(ctx)
		m.session.pulse(ctx, m.session.nodes.CompleteReply)
		sleep(ctx, m.timings.ClearRetrySettle)
	}
	if !cleared {
		log.Printf("[Mover] Cannot clear previous command state")
		return false
	}

	// Send the command and raise the strobe.
	if err := m.session.bus.WriteString(ctx, m.session.nodes.Command, cmd); err != nil {
		log.Printf("[Mover] Command write failed: %v", err)
		return false
	}
	if err := m.session.bus.WriteBool(ctx, m.session.nodes.SendStrobe, true); err != nil {
		log.Printf("[Mover] Strobe raise failed: %v", err)
		_ = m.session.bus.WriteBool(ctx, m.session.nodes.SendStrobe, false)
		return false
	}

	if !m.session.waitBool(ctx, m.session.nodes.Ack, true, m.timings.AckTimeout) {
		_ = m.session.bus.WriteBool(ctx, m.session.nodes.SendStrobe, false)
		m.logEvent("ack_timeout", map[string]interface{}{
			"cycle_id": cycleID, "method": string(method), "basket": job.Basket,
		})
		return false
	}

	// ACK: the job is the PLC's now. Remove the queue row before anything
	// else so no other consumer can act on it.
	if err := m.store.DeleteJob(ctx, method, job.ID); err != nil {
		log.Printf("[Mover] Delete queue row %d: %v", job.ID, err)
	}
	_ = m.session.bus.WriteBool(ctx, m.session.nodes.SendStrobe, false)

	// Commit occupancy immediately, fire-and-forget relative to the
	// physical motion. If the completion handshake hangs later, the queue
	// has still moved on; reconciliation is the operation history's job.
	switch method {
	case wms.MethodPut:
		info, err := m.store.MovePut(ctx, shelfID, job.Basket, false)
		if err != nil {
			log.Printf("[Mover] CRITICAL occupancy update after ACK: %v", err)
		} else {
			success = true
			m.logEvent("occupancy_committed", map[string]interface{}{
				"cycle_id": cycleID, "method": "PUT", "basket": job.Basket,
				"shelf_id": shelfID, "cleared_from": info.ClearedFrom,
			})
		}
	case wms.MethodPick:
		if err := m.store.MarkPick(ctx, shelfID); err != nil {
			log.Printf("[Mover] CRITICAL occupancy update after ACK: %v", err)
		} else {
			success = true
			m.logEvent("occupancy_committed", map[string]interface{}{
				"cycle_id": cycleID, "method": "PICK", "basket": job.Basket,
				"shelf_id": shelfID,
			})
		}
	}

	// Secondary QR exchange, if the PLC asks for it right away.
	m.session.serveQRIfRequested(ctx, job.Basket, m.timings.QRRequestWait)

	// Wait for physical completion to clean up the handshake. The outcome
	// of this wait no longer changes success.
	done := false
	notReadySeen := false
	deadline := time.Now().Add(m.timings.CompleteTimeout)
	lastStatus := time.Time{}
	log.Printf("[Mover] Waiting for completion: %s %s", method, job.Basket)

	for time.Now().Before(deadline) && ctx.Err() == nil {
		complete, err := m.session.bus.ReadBool(ctx, m.session.nodes.Complete)
		if err != nil {
			sleep(ctx, m.timings.WaitPoll)
			continue
		}
		if complete {
			sleep(ctx, m.timings.CompleteSettle)
			m.session.pulse(ctx, m.session.nodes.CompleteReply)
			log.Printf("[Mover] Operation completed: %s %s", method, job.Basket)
			sleep(ctx, m.timings.PostReplyPause)
			m.session.clearCommandRegisters(ctx)
			done = true
			break
		}

		if now := time.Now(); now.Sub(lastStatus) >= m.timings.StatusInterval {
			remaining := time.Until(deadline).Round(time.Second)
			log.Printf("[Mover] Operation in progress: %s %s (%s remaining)", method, job.Basket, remaining)
			lastStatus = now
		}

		if req, err := m.session.bus.ReadBool(ctx, m.session.nodes.SendBasketQR); err == nil && req {
			m.session.serveQRIfRequested(ctx, job.Basket, 0)
		}

		if !m.session.SystemReady(ctx) {
			if !notReadySeen {
				log.Printf("[Mover] System not ready during operation")
				notReadySeen = true
			}
			sleep(ctx, m.timings.NotReadyPause)
			continue
		}

		sleep(ctx, m.timings.CompletePoll)
	}

	if !done {
		reason := "complete_timeout"
		if notReadySeen {
			reason = "system_not_ready_timeout"
		}
		m.logEvent(reason, map[string]interface{}{
			"cycle_id": cycleID, "method": string(method), "basket": job.Basket,
			"waited_seconds": m.timings.CompleteTimeout.Seconds(),
		})
	}

	// Cleanup always runs; every step is best-effort.
	m.session.pulse(ctx, m.session.nodes.CompleteReply)
	m.session.clearCommandRegisters(ctx)
	m.session.waitBool(ctx, m.session.nodes.Complete, false, m.timings.CleanupCompleteWait)
	sleep(ctx, m.timings.CleanupPause)
	m.session.pulse(ctx, m.session.nodes.CompleteReply)
	m.session.waitBool(ctx, m.session.nodes.Ack, false, m.timings.CleanupAckWait)
	m.session.waitBool(ctx, m.session.nodes.Ready, true, m.timings.CleanupReadyWait)

	seconds := time.Since(start).Seconds()
	m.recordDuration(method, seconds)
	if m.OnCycleDone != nil {
		m.OnCycleDone(wms.CycleResult{
			Method:  method,
			Basket:  job.Basket,
			Seconds: seconds,
			Success: success,
		})
	}
	return success
}

// ResetCommand force-clears the command registers and the pending-clear
// flag. Refuses while a command cycle is in flight; operators retry once
// the cycle has ended.
func (m *Mover) ResetCommand(ctx context.Context) error {
	if !m.cmdMu.TryLock() {
		return ErrCommandInFlight
	}
	defer m.cmdMu.Unlock()

	m.session.clearCommandRegisters(ctx)
	_ = m.session.bus.WriteBool(ctx, m.session.nodes.SendStrobe, false)
	m.session.pulse(ctx, m.session.nodes.CompleteReply)
	sleep(ctx, m.timings.CleanupPause)
	m.session.pulse(ctx, m.session.nodes.CompleteReply)
	m.pendingClear.Store(false)
	log.Printf("[Mover] Command registers reset")
	return nil
}

// LastDurations returns the duration in seconds of the most recent put and
// pick cycles; nil means no cycle of that kind has run yet.
func (m *Mover) LastDurations() (put, pick *float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPut, m.lastPick
}

// Position returns the crane's last known grid cell.
func (m *Mover) Position() (col, row, depth int) {
	return m.tracker.Position()
}

// Flags reads the PLC health lines.
func (m *Mover) Flags(ctx context.Context) (ready, auto, alarm bool, err error) {
	return m.session.Flags(ctx)
}

func (m *Mover) recordDuration(method wms.Method, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch method {
	case wms.MethodPut:
		m.lastPut = &seconds
	case wms.MethodPick:
		m.lastPick = &seconds
	}
}

// logEvent logs a structured event in JSON format.
func (m *Mover) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "mover"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Mover] Failed to marshal log event: %v", err)
		return
	}
	log.Println(string(jsonData))
}
