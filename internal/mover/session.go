package mover

import (
	"context"
	"log"
	"time"

	"github.com/siamwms/asrsd/internal/plc"
)

// Session is one crane-facing PLC connection plus its node map. Every
// register access the mover and the clear reactor perform goes through it;
// exclusive access to the command registers is enforced by the Mover's
// command lock, not here.
type Session struct {
	bus     plc.Bus
	nodes   plc.Nodes
	timings Timings
}

// NewSession wraps a connected bus.
func NewSession(bus plc.Bus, nodes plc.Nodes, timings Timings) *Session {
	return &Session{bus: bus, nodes: nodes, timings: timings}
}

// InitOutputs drives every WMS-owned line low. Called once after connect so
// a restart never leaves a stale strobe up.
func (s *Session) InitOutputs(ctx context.Context) {
	for _, node := range []string{s.nodes.SendStrobe, s.nodes.CompleteReply, s.nodes.ReceiveQR, s.nodes.ClearReply} {
		if err := s.bus.WriteBool(ctx, node, false); err != nil {
			log.Printf("[Mover] Init output %s low failed: %v", node, err)
		}
	}
}

// pulse raises a line, holds it for the pulse width, and drops it again.
// The drop runs even when the raise failed.
func (s *Session) pulse(ctx context.Context, node string) {
	if err := s.bus.WriteBool(ctx, node, true); err != nil {
		log.Printf("[Mover] Pulse %s raise failed: %v", node, err)
	}
	sleep(ctx, s.timings.PulseWidth)
	if err := s.bus.WriteBool(ctx, node, false); err != nil {
		log.Printf("[Mover] Pulse %s drop failed: %v", node, err)
	}
}

// waitBool polls a line until it reads want or the timeout expires. Read
// errors are tolerated and retried; transient I/O must not abort a
// handshake wait.
func (s *Session) waitBool(ctx context.Context, node string, want bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		v, err := s.bus.ReadBool(ctx, node)
		if err == nil && v == want {
			return true
		}
		sleep(ctx, s.timings.WaitPoll)
	}
	return false
}

// Flags reads the three health lines in one pass.
func (s *Session) Flags(ctx context.Context) (ready, auto, alarm bool, err error) {
	if ready, err = s.bus.ReadBool(ctx, s.nodes.Ready); err != nil {
		return false, false, false, err
	}
	if auto, err = s.bus.ReadBool(ctx, s.nodes.AutoMode); err != nil {
		return false, false, false, err
	}
	if alarm, err = s.bus.ReadBool(ctx, s.nodes.Alarm); err != nil {
		return false, false, false, err
	}
	return ready, auto, alarm, nil
}

// SystemReady reports ready && auto && !alarm. Any read failure counts as
// not ready.
func (s *Session) SystemReady(ctx context.Context) bool {
	ready, auto, alarm, err := s.Flags(ctx)
	if err != nil {
		return false
	}
	return ready && auto && !alarm
}

// clearCommandRegisters blanks the command string, the QR value register
// and drops the WMS-owned handshake lines. Each write is best-effort; a
// failed clear is logged and the rest still run.
func (s *Session) clearCommandRegisters(ctx context.Context) {
	if err := s.bus.WriteString(ctx, s.nodes.Command, ""); err != nil {
		log.Printf("[Mover] Clear command register failed: %v", err)
	}
	sleep(ctx, s.timings.WaitPoll)
	if err := s.bus.WriteString(ctx, s.nodes.BasketQR, ""); err != nil {
		log.Printf("[Mover] Clear QR register failed: %v", err)
	}
	if err := s.bus.WriteBool(ctx, s.nodes.ReceiveQR, false); err != nil {
		log.Printf("[Mover] Drop QR ack failed: %v", err)
	}
	if err := s.bus.WriteBool(ctx, s.nodes.SendStrobe, false); err != nil {
		log.Printf("[Mover] Drop send strobe failed: %v", err)
	}
}

// serveQRIfRequested answers the PLC's in-cycle QR exchange: write the
// basket id, pulse the acknowledge line, wait for the request to drop.
// With waitFor > 0 it first waits up to that long for the request line to
// come up at all.
func (s *Session) serveQRIfRequested(ctx context.Context, basket string, waitFor time.Duration) {
	if waitFor > 0 {
		deadline := time.Now().Add(waitFor)
		for time.Now().Before(deadline) {
			if ctx.Err() != nil {
				return
			}
			if req, err := s.bus.ReadBool(ctx, s.nodes.SendBasketQR); err == nil && req {
				break
			}
			sleep(ctx, s.timings.WaitPoll)
		}
	}

	req, err := s.bus.ReadBool(ctx, s.nodes.SendBasketQR)
	if err != nil || !req {
		return
	}
	if err := s.bus.WriteString(ctx, s.nodes.BasketQR, basket); err != nil {
		log.Printf("[Mover] QR value write failed: %v", err)
		return
	}
	sleep(ctx, s.timings.WaitPoll)
	s.pulse(ctx, s.nodes.ReceiveQR)
	if !s.waitBool(ctx, s.nodes.SendBasketQR, false, s.timings.QRDropWait) {
		log.Printf("[Mover] QR request line did not drop for %s", basket)
	}
}

// sleep pauses for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
