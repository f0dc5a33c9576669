package mover

import "time"

// Timings collects every delay and timeout in the command cycle. Production
// uses DefaultTimings; tests inject millisecond values so a full handshake
// runs in well under a second.
type Timings struct {
	// Pulse and poll primitives.
	PulseWidth time.Duration // width of a line pulse
	WaitPoll   time.Duration // poll interval inside waitBool

	// Clearing prior command state before a send.
	ClearAttempts    int
	ClearWait        time.Duration // per-attempt wait for ack/complete low
	ClearRetrySettle time.Duration // pause after a force-clear retry

	// Send and completion.
	AckTimeout      time.Duration
	CompleteTimeout time.Duration
	CompletePoll    time.Duration // completion-line poll interval
	CompleteSettle  time.Duration // pause after complete goes high
	PostReplyPause  time.Duration // pause between reply pulse and register clear
	StatusInterval  time.Duration // progress log cadence while waiting
	NotReadyPause   time.Duration // backoff while readiness is lost mid-wait

	// Best-effort cleanup after every cycle.
	CleanupPause        time.Duration
	CleanupCompleteWait time.Duration
	CleanupAckWait      time.Duration
	CleanupReadyWait    time.Duration

	// QR side-handshake.
	QRRequestWait time.Duration // bounded wait for the request line after ACK
	QRDropWait    time.Duration // wait for the request line to drop after reply

	// Outer loop pacing.
	IdleSleep      time.Duration // no eligible job
	FailureBackoff time.Duration // after a failed cycle
	ClearPoll      time.Duration // clear-request reactor interval
}

// DefaultTimings returns the plant values.
func DefaultTimings() Timings {
	return Timings{
		PulseWidth:          50 * time.Millisecond,
		WaitPoll:            20 * time.Millisecond,
		ClearAttempts:       3,
		ClearWait:           2 * time.Second,
		ClearRetrySettle:    500 * time.Millisecond,
		AckTimeout:          5 * time.Second,
		CompleteTimeout:     120 * time.Second,
		CompletePoll:        30 * time.Millisecond,
		CompleteSettle:      time.Second,
		PostReplyPause:      500 * time.Millisecond,
		StatusInterval:      10 * time.Second,
		NotReadyPause:       500 * time.Millisecond,
		CleanupPause:        150 * time.Millisecond,
		CleanupCompleteWait: 5 * time.Second,
		CleanupAckWait:      5 * time.Second,
		CleanupReadyWait:    3 * time.Second,
		QRRequestWait:       500 * time.Millisecond,
		QRDropWait:          2 * time.Second,
		IdleSleep:           100 * time.Millisecond,
		FailureBackoff:      2 * time.Second,
		ClearPoll:           150 * time.Millisecond,
	}
}
