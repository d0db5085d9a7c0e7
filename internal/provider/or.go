package provider

import (
	"context"
	"fmt"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
)

// OrProvider runs its children sequentially, in order, and concatenates
// their per-track suggestions. It deduplicates only suggestions that are
// byte-identical after normalization (same track index, same edit fields or
// same proposed rule).
type OrProvider struct {
	Children []ActionProvider
}

// NewOrProvider returns an OrProvider wrapping children in the given order.
func NewOrProvider(children ...ActionProvider) *OrProvider {
	return &OrProvider{Children: children}
}

func (p *OrProvider) Analyze(ctx context.Context, tracks []lastfm.Track, pending PendingState) ([]TrackSuggestions, error) {
	byTrack := make(map[int][]SuggestionWithContext)
	var order []int
	seen := make(map[int]map[string]bool)

	for _, child := range p.Children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := child.Analyze(ctx, tracks, pending)
		if err != nil {
			return nil, fmt.Errorf("provider chain: %w", err)
		}
		for _, ts := range results {
			if _, ok := byTrack[ts.TrackIndex]; !ok {
				order = append(order, ts.TrackIndex)
				seen[ts.TrackIndex] = make(map[string]bool)
			}
			for _, sug := range ts.Suggestions {
				key := normalizeKey(sug)
				if seen[ts.TrackIndex][key] {
					continue
				}
				seen[ts.TrackIndex][key] = true
				byTrack[ts.TrackIndex] = append(byTrack[ts.TrackIndex], sug)
			}
		}
	}

	out := make([]TrackSuggestions, 0, len(order))
	for _, idx := range order {
		out = append(out, TrackSuggestions{TrackIndex: idx, Suggestions: byTrack[idx]})
	}
	return out, nil
}

// normalizeKey produces a byte-identical-after-normalization dedup key for a
// suggestion.
func normalizeKey(s SuggestionWithContext) string {
	switch {
	case s.Suggestion.Edit != nil:
		e := s.Suggestion.Edit
		return fmt.Sprintf("edit|%s|%s|%s|%s|%s|%s|%s|%s|%d|%v|%v",
			e.TrackNameOriginal, e.TrackName,
			e.ArtistNameOriginal, e.ArtistName,
			e.AlbumNameOriginal, e.AlbumName,
			e.AlbumArtistNameOriginal, e.AlbumArtistName,
			e.Timestamp, e.EditAll, s.RequiresConfirmation)
	case s.Suggestion.ProposedRule != nil:
		r := s.Suggestion.ProposedRule
		return fmt.Sprintf("rule|%s|%+v|%+v|%+v|%+v|%s",
			r.Name, r.TrackName, r.ArtistName, r.AlbumName, r.AlbumArtistName, s.Suggestion.RuleMotivation)
	default:
		return ""
	}
}
