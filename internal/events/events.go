// Package events implements the scrubber's broadcast event bus: a single
// producer (the scheduler) fans structured ScrubberEvent values out to any
// number of subscribers (UIs, tests). Subscribers only see events emitted
// from the point they subscribe onward.
package events

import (
	"sync"
	"time"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
)

// Kind identifies the type of a ScrubberEvent.
type Kind int

const (
	Starting Kind = iota
	CycleStarted
	TrackProcessed
	TrackSkipped
	EditApplied
	EditQueued
	EditFailed
	RuleProposed
	RateLimited
	RateLimitCleared
	Sleeping
	CycleComplete
	Stopped
	Info
	Warn
	Error
)

// CycleStats summarizes one scrubber cycle.
type CycleStats struct {
	TracksSeen   int
	EditsApplied int
	EditsPending int
	RulesPending int
}

// Event is a single structured notification on the bus.
type Event struct {
	Timestamp time.Time
	Kind      Kind

	Track      lastfm.Track
	Suggestion any // []provider.SuggestionWithContext, kept as any to avoid an import cycle
	Applied    bool
	Reason     string

	Edit  lastfm.ScrobbleEdit
	Error error

	Rule    any // rewrite.RewriteRule
	Example lastfm.Track

	RateLimitState any // scrubber.RateLimitState

	SleepSeconds int
	Stats        CycleStats
	Message      string
}

// Bus is a broadcast channel of Events. The zero value is not usable; use
// New.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// New returns a ready-to-use Bus.
func New() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new listener and returns a channel of events emitted
// from this point onward, plus an unsubscribe function. The returned
// channel is buffered; a slow consumer does not block the producer forever,
// but may miss events if its buffer fills (Publish drops rather than
// blocks, since the scheduler is the single producer task and must not
// stall on a stuck subscriber).
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish fans ev out to all current subscribers. Non-blocking per
// subscriber: a full buffer drops the event for that subscriber rather than
// stalling the producer.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
