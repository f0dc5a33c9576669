// Package status publishes periodic snapshots of the crane's health and
// last-cycle durations over Redis Pub/Sub so dashboards and the WebSocket
// layer can follow the system without touching the PLC themselves.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is one published status sample. Duration fields are nil until a
// cycle of that kind has run.
type Snapshot struct {
	Ready           bool     `json:"ready"`
	AutoMode        bool     `json:"auto_mode"`
	Alarm           bool     `json:"alarm"`
	LastPutSeconds  *float64 `json:"last_put_seconds"`
	LastPickSeconds *float64 `json:"last_pick_seconds"`
	Timestamp       string   `json:"timestamp"`
}

// Source is the mover-side view the feed samples from.
type Source interface {
	Flags(ctx context.Context) (ready, auto, alarm bool, err error)
	LastDurations() (put, pick *float64)
}

// Channel returns the Pub/Sub channel name for an instance.
func Channel(instance string) string {
	return fmt.Sprintf("asrs:%s:status", instance)
}

// Feed samples a Source at a fixed interval and publishes each snapshot.
type Feed struct {
	rdb      *redis.Client
	source   Source
	instance string
	interval time.Duration

	mu   sync.RWMutex
	last *Snapshot
}

// NewFeed creates a feed publishing to Channel(instance) every interval.
func NewFeed(rdb *redis.Client, source Source, instance string, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = time.Second
	}
	return &Feed{rdb: rdb, source: source, instance: instance, interval: interval}
}

// Run publishes until ctx is cancelled. PLC read failures produce a
// snapshot with all flags false rather than a missed sample; consumers see
// "not ready" instead of silence.
func (f *Feed) Run(ctx context.Context) {
	log.Printf("[Status] Feed started for instance '%s'", f.instance)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Status] Feed stopped")
			return
		case <-ticker.C:
		}

		snap := f.sample(ctx)
		f.mu.Lock()
		f.last = &snap
		f.mu.Unlock()

		payload, err := json.Marshal(snap)
		if err != nil {
			log.Printf("[Status] Marshal snapshot: %v", err)
			continue
		}
		if err := f.rdb.Publish(ctx, Channel(f.instance), payload).Err(); err != nil {
			log.Printf("[Status] Publish snapshot: %v", err)
		}
	}
}

func (f *Feed) sample(ctx context.Context) Snapshot {
	ready, auto, alarm, err := f.source.Flags(ctx)
	if err != nil {
		log.Printf("[Status] Read health flags: %v", err)
		ready, auto, alarm = false, false, false
	}
	put, pick := f.source.LastDurations()
	return Snapshot{
		Ready:           ready,
		AutoMode:        auto,
		Alarm:           alarm,
		LastPutSeconds:  put,
		LastPickSeconds: pick,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
}

// Last returns the most recently published snapshot, or nil before the
// first sample.
func (f *Feed) Last() *Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.last
}

// Subscription is an active Pub/Sub subscription to status snapshots.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Snapshot
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of snapshots. The channel is closed when the
// subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Snapshot {
	return s.events
}

// Errors returns the channel of subscription errors. Errors are non-fatal;
// the subscription continues and the bad message is skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe follows the status channel for an instance.
func Subscribe(ctx context.Context, rdb *redis.Client, instance string) (*Subscription, error) {
	pubsub := rdb.Subscribe(ctx, Channel(instance))

	eventsChan := make(chan *Snapshot, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var snap Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					select {
					case errorsChan <- fmt.Errorf("unmarshal status snapshot: %w", err):
					default:
					}
					continue
				}
				select {
				case eventsChan <- &snap:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{events: eventsChan, errors: errorsChan, cancel: cancelFunc}, nil
}
