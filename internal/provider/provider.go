// Package provider defines the action-provider contract: a uniform way for
// a component to look at a batch of tracks (plus pending state, for
// dedup purposes) and propose metadata-change suggestions.
package provider

import (
	"context"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/rewrite"
)

// Suggestion is either a proposed Edit or a proposed new RewriteRule.
type Suggestion struct {
	Edit           *lastfm.ScrobbleEdit
	ProposedRule   *rewrite.RewriteRule
	RuleMotivation string // only set alongside ProposedRule
}

// SuggestionWithContext wraps a Suggestion with the motivation behind it and
// whether it requires human confirmation before being applied.
type SuggestionWithContext struct {
	Suggestion           Suggestion
	Motivation           string
	RequiresConfirmation bool
}

// TrackSuggestions pairs a track's index in the input slice with the
// suggestions a provider produced for it.
type TrackSuggestions struct {
	TrackIndex  int
	Suggestions []SuggestionWithContext
}

// PendingState is the context a provider may consult to avoid proposing
// duplicate work; providers must treat it as read-only.
type PendingState struct {
	PendingEdits []lastfm.ScrobbleEdit
	PendingRules []rewrite.RewriteRule
}

// ActionProvider evaluates tracks and proposes suggestions. Implementations
// must preserve input order in their output (only tracks with at least one
// suggestion appear), must not mutate the state store, and must respect
// ctx cancellation on any network call.
type ActionProvider interface {
	Analyze(ctx context.Context, tracks []lastfm.Track, pending PendingState) ([]TrackSuggestions, error)
}
