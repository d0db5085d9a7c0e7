// Package scrubber implements the scheduler loop that drives a cycle of
// "fetch newest scrobbles, run the action-provider chain, apply or queue
// suggestions, advance the anchor" over a user's Last.fm history.
package scrubber

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/kbuilds/scrobble-scrubber/internal/events"
	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/provider"
	"github.com/kbuilds/scrobble-scrubber/internal/rewrite"
	"github.com/kbuilds/scrobble-scrubber/internal/state"
)

// RateLimitState mirrors the event bus's RateLimitState payload.
type RateLimitState struct {
	IsRateLimited bool
	DetectedAt    time.Time
	RetryAfter    time.Duration
	Message       string
	Type          lastfm.RateLimitKind
}

// Scheduler drives the cycle described in the scheduler design: load state,
// fetch above-anchor tracks, run the provider chain chunk by chunk, apply
// or queue suggestions, advance the anchor.
type Scheduler struct {
	Store     *state.Store
	Tracks    lastfm.TrackProvider
	Editor    lastfm.EditClient
	Providers []provider.ActionProvider
	Bus       *events.Bus
	Config    Config
	Log       logr.Logger

	mu        sync.Mutex
	rateLimit RateLimitState
}

// RunOnce performs a single cycle against tracks newer than the anchor and
// advances the anchor.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.Bus.Publish(events.Event{Kind: events.CycleStarted})
	return s.runCycle(ctx, s.fetchAboveAnchor, true)
}

// RunContinuous repeats RunOnce, sleeping Config.Interval between cycles,
// until ctx is canceled.
func (s *Scheduler) RunContinuous(ctx context.Context) error {
	s.Bus.Publish(events.Event{Kind: events.Starting})
	for {
		if ctx.Err() != nil {
			s.Bus.Publish(events.Event{Kind: events.Stopped})
			return nil
		}
		s.Bus.Publish(events.Event{Kind: events.CycleStarted})
		if err := s.runCycle(ctx, s.fetchAboveAnchor, true); err != nil {
			if isFatal(err) {
				return classify(err)
			}
			s.Log.Error(err, "cycle failed, continuing")
		}

		seconds := int(s.Config.Interval.Seconds())
		s.Bus.Publish(events.Event{Kind: events.Sleeping, SleepSeconds: seconds})
		select {
		case <-ctx.Done():
			s.Bus.Publish(events.Event{Kind: events.Stopped})
			return nil
		case <-time.After(s.Config.Interval):
		}
	}
}

// RunLastN fetches the n newest tracks regardless of the anchor and does
// not advance it.
func (s *Scheduler) RunLastN(ctx context.Context, n int) error {
	s.Bus.Publish(events.Event{Kind: events.CycleStarted})
	return s.runCycle(ctx, func(ctx context.Context) ([]lastfm.Track, error) {
		return s.Tracks.FetchRecentTracks(ctx, n)
	}, false)
}

// RunArtist fetches up to Config.MaxTracks tracks by artist and does not
// advance the anchor.
func (s *Scheduler) RunArtist(ctx context.Context, artist string) error {
	s.Bus.Publish(events.Event{Kind: events.CycleStarted})
	return s.runCycle(ctx, func(ctx context.Context) ([]lastfm.Track, error) {
		return s.Tracks.FetchArtistTracks(ctx, artist, s.Config.MaxTracks)
	}, false)
}

func (s *Scheduler) fetchAboveAnchor(ctx context.Context) ([]lastfm.Track, error) {
	all, err := s.Tracks.FetchRecentTracks(ctx, s.Config.MaxTracks)
	if err != nil {
		return nil, err
	}
	anchor := s.Store.LoadAnchor()
	if anchor == nil {
		return all, nil
	}
	above := make([]lastfm.Track, 0, len(all))
	for _, t := range all {
		if t.HasTimestamp && t.Timestamp <= *anchor {
			break
		}
		above = append(above, t)
	}
	return above, nil
}

// runCycle is the heart of the scheduler: it fetches tracks via fetch,
// chunks them, runs the provider chain per chunk, applies or queues
// suggestions, and (if advanceAnchor) persists the newest processed
// timestamp after each chunk completes.
func (s *Scheduler) runCycle(ctx context.Context, fetch func(context.Context) ([]lastfm.Track, error), advanceAnchor bool) error {
	var tracks []lastfm.Track
	err := s.withRateLimitRetry(ctx, func(ctx context.Context) error {
		t, err := fetch(ctx)
		if err != nil {
			return err
		}
		tracks = t
		return nil
	})
	if err != nil {
		return classify(err)
	}

	stats := events.CycleStats{}
	chunks := chunkTracks(tracks, s.Config.ProcessingBatchSize)

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			s.Bus.Publish(events.Event{Kind: events.Stopped})
			return nil
		}

		pending := provider.PendingState{
			PendingEdits: pendingEditsOf(s.Store.LoadPendingEdits()),
			PendingRules: pendingRulesOf(s.Store.LoadPendingRules()),
		}

		bySuggestion, err := s.runProviders(ctx, chunk, pending)
		if err != nil {
			if isFatal(err) {
				return classify(err)
			}
			s.Log.Error(err, "provider chain failed for chunk, skipping")
			continue
		}

		if err := s.processChunk(ctx, chunk, bySuggestion, &stats); err != nil {
			if isFatal(err) {
				return classify(err)
			}
			s.Log.Error(err, "error applying suggestions for chunk")
		}

		if advanceAnchor {
			if newest, ok := newestTimestamp(chunk); ok {
				if err := s.Store.SaveAnchor(newest); err != nil {
					s.Log.Error(err, "failed persisting anchor")
				}
			}
		}
	}

	s.Bus.Publish(events.Event{Kind: events.CycleComplete, Stats: stats})
	return nil
}

func (s *Scheduler) runProviders(ctx context.Context, tracks []lastfm.Track, pending provider.PendingState) (map[int][]provider.SuggestionWithContext, error) {
	bySuggestion := make(map[int][]provider.SuggestionWithContext)
	for _, p := range s.Providers {
		out, err := p.Analyze(ctx, tracks, pending)
		if err != nil {
			return nil, err
		}
		for _, ts := range out {
			bySuggestion[ts.TrackIndex] = append(bySuggestion[ts.TrackIndex], ts.Suggestions...)
		}
	}
	return bySuggestion, nil
}

func (s *Scheduler) processChunk(ctx context.Context, chunk []lastfm.Track, bySuggestion map[int][]provider.SuggestionWithContext, stats *events.CycleStats) error {
	for i, t := range chunk {
		stats.TracksSeen++
		sugs := bySuggestion[i]
		if len(sugs) == 0 {
			s.Bus.Publish(events.Event{Kind: events.TrackSkipped, Track: t, Reason: "no rule applied"})
			continue
		}

		applied := false
		for _, sug := range sugs {
			switch {
			case sug.Suggestion.Edit != nil:
				if err := s.handleEditSuggestion(ctx, t, sug, stats); err != nil {
					return err
				}
				if !sug.RequiresConfirmation && !s.Config.RequireConfirmation && !s.Config.DryRun {
					applied = true
				}
			case sug.Suggestion.ProposedRule != nil:
				s.handleRuleSuggestion(t, sug, stats)
			}
		}

		s.Bus.Publish(events.Event{Kind: events.TrackProcessed, Track: t, Suggestion: sugs, Applied: applied})
	}
	return nil
}

func (s *Scheduler) handleEditSuggestion(ctx context.Context, t lastfm.Track, sug provider.SuggestionWithContext, stats *events.CycleStats) error {
	edit := *sug.Suggestion.Edit
	requiresConfirmation := sug.RequiresConfirmation || s.Config.RequireConfirmation

	if !requiresConfirmation && !s.Config.DryRun {
		err := s.withRateLimitRetry(ctx, func(ctx context.Context) error {
			return s.Editor.ApplyEdit(ctx, edit)
		})
		if err != nil {
			if isFatal(err) {
				return err
			}
			s.Log.Error(err, "applying edit failed, queuing for approval instead", "track", t.Name)
			if _, addErr := s.Store.AddPendingEdit(edit, time.Now().Unix()); addErr != nil {
				s.Log.Error(addErr, "failed queuing pending edit after apply failure")
			}
			s.Bus.Publish(events.Event{Kind: events.EditFailed, Edit: edit, Error: err})
			stats.EditsPending++
			return nil
		}
		stats.EditsApplied++
		s.Bus.Publish(events.Event{Kind: events.EditApplied, Edit: edit})
		return nil
	}

	if _, err := s.Store.AddPendingEdit(edit, time.Now().Unix()); err != nil {
		return err
	}
	stats.EditsPending++
	s.Bus.Publish(events.Event{Kind: events.EditQueued, Edit: edit, Reason: "pending approval"})
	return nil
}

func (s *Scheduler) handleRuleSuggestion(t lastfm.Track, sug provider.SuggestionWithContext, stats *events.CycleStats) {
	pr := state.PendingRewriteRule{
		Rule:              *sug.Suggestion.ProposedRule,
		Reason:            sug.Suggestion.RuleMotivation,
		ExampleTrackName:  t.Name,
		ExampleArtistName: t.Artist,
		ExampleAlbumName:  t.Album,
		CreatedAt:         time.Now().Unix(),
	}
	if _, err := s.Store.AddPendingRule(pr); err != nil {
		s.Log.Error(err, "failed queuing pending rule")
		return
	}
	stats.RulesPending++
	s.Bus.Publish(events.Event{Kind: events.RuleProposed, Rule: pr.Rule, Example: t})
}

// backoffBounds returns the initial and max backoff for a rate-limit kind.
// A whole-account suspension (Global) is treated more cautiously than a
// single throttled request (PerTrack): a longer initial wait and a higher
// cap, since retrying a suspended account aggressively risks extending the
// suspension.
func backoffBounds(kind lastfm.RateLimitKind) (initial, cap_ time.Duration) {
	switch kind {
	case lastfm.RateLimitGlobal:
		return 60 * time.Second, 30 * time.Minute
	default:
		return 30 * time.Second, 15 * time.Minute
	}
}

// withRateLimitRetry runs op, and on a *lastfm.RateLimitedError sleeps
// (retry_after if given, otherwise an exponential backoff whose initial
// value and cap depend on the rate limit's Kind) before retrying. It gives
// up only when ctx is canceled or op returns a non-rate-limit error.
func (s *Scheduler) withRateLimitRetry(ctx context.Context, op func(context.Context) error) error {
	var backoff time.Duration
	var maxBackoff time.Duration
	haveBounds := false

	for {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var rl *lastfm.RateLimitedError
		if !errors.As(err, &rl) {
			return err
		}

		if !haveBounds {
			backoff, maxBackoff = backoffBounds(rl.Kind)
			haveBounds = true
		}

		wait := backoff
		if rl.RetryAfter > 0 {
			wait = rl.RetryAfter
		}
		s.setRateLimited(true, wait, err.Error(), rl.Kind)
		s.Bus.Publish(events.Event{Kind: events.RateLimited, RateLimitState: s.RateLimit(), Message: err.Error()})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		s.setRateLimited(false, 0, "", rl.Kind)
		s.Bus.Publish(events.Event{Kind: events.RateLimitCleared})

		initial, _ := backoffBounds(rl.Kind)
		if rl.RetryAfter > 0 {
			backoff = initial
		} else {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

func (s *Scheduler) setRateLimited(limited bool, retryAfter time.Duration, msg string, kind lastfm.RateLimitKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimit = RateLimitState{
		IsRateLimited: limited,
		DetectedAt:    time.Now(),
		RetryAfter:    retryAfter,
		Message:       msg,
		Type:          kind,
	}
}

// RateLimit returns the scheduler's current rate-limit snapshot.
func (s *Scheduler) RateLimit() RateLimitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimit
}

func chunkTracks(tracks []lastfm.Track, size int) [][]lastfm.Track {
	if size <= 0 {
		size = 1
	}
	var chunks [][]lastfm.Track
	for i := 0; i < len(tracks); i += size {
		end := i + size
		if end > len(tracks) {
			end = len(tracks)
		}
		chunks = append(chunks, tracks[i:end])
	}
	return chunks
}

// newestTimestamp returns the timestamp of the newest track in chunk that
// carries one; chunks are processed newest-first, so the first timestamped
// track found is the newest.
func newestTimestamp(chunk []lastfm.Track) (int64, bool) {
	for _, t := range chunk {
		if t.HasTimestamp {
			return t.Timestamp, true
		}
	}
	return 0, false
}

func pendingEditsOf(pe []state.PendingEdit) []lastfm.ScrobbleEdit {
	out := make([]lastfm.ScrobbleEdit, len(pe))
	for i, p := range pe {
		out[i] = p.Edit
	}
	return out
}

func pendingRulesOf(pr []state.PendingRewriteRule) []rewrite.RewriteRule {
	out := make([]rewrite.RewriteRule, len(pr))
	for i, p := range pr {
		out[i] = p.Rule
	}
	return out
}
