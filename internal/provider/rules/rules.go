// Package rules implements the rewrite-rules action provider: given the
// active rule set, it proposes an Edit suggestion per track that the rules
// would actually change.
package rules

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/provider"
	"github.com/kbuilds/scrobble-scrubber/internal/rewrite"
)

// Provider evaluates rewrite.RewriteRule values against tracks.
type Provider struct {
	Rules func() []rewrite.RewriteRule // read-mostly; re-fetched per Analyze call
	Log   logr.Logger
}

// New returns a Provider backed by a function that supplies the current
// active rule set. The function is called once at the start of every
// Analyze call, so each chunk the scheduler hands over sees the rule set as
// it stands at that moment.
func New(rules func() []rewrite.RewriteRule, log logr.Logger) *Provider {
	return &Provider{Rules: rules, Log: log}
}

func (p *Provider) Analyze(ctx context.Context, tracks []lastfm.Track, pending provider.PendingState) ([]provider.TrackSuggestions, error) {
	active := p.Rules()
	var out []provider.TrackSuggestions

	for i, t := range tracks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		edit := lastfm.NoOpEdit(t)
		requiresConfirmation := false
		changed := false

		for _, r := range active {
			fieldChanged, err := r.Apply(&edit)
			if err != nil {
				// A single bad rule degrades to "skip it", per the rewrite
				// engine's failure mode; it must not abort the whole track.
				p.Log.Info("skipping rule with invalid pattern", "rule", r.Name, "error", err.Error())
				continue
			}
			if fieldChanged {
				changed = true
				if r.RequiresConfirmation {
					requiresConfirmation = true
				}
			}
		}

		if !changed {
			continue
		}

		out = append(out, provider.TrackSuggestions{
			TrackIndex: i,
			Suggestions: []provider.SuggestionWithContext{{
				Suggestion:           provider.Suggestion{Edit: &edit},
				RequiresConfirmation: requiresConfirmation,
			}},
		})
	}
	return out, nil
}
