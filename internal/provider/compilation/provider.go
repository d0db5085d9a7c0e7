package compilation

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/provider"
)

// Provider is the compilation-to-canonical action provider: it flags
// scrobbles whose album is a compilation and proposes rewriting them to the
// recording's canonical studio release.
type Provider struct {
	Client *Client
	Log    logr.Logger

	// PreferNonJapaneseReleases breaks same-date canonical-release ties in
	// favor of a non-Japanese release.
	PreferNonJapaneseReleases bool
}

var _ provider.ActionProvider = (*Provider)(nil)

// New returns a Provider backed by client. When preferNonJapanese is true,
// it prefers non-Japanese releases on tied dates.
func New(client *Client, log logr.Logger, preferNonJapanese bool) *Provider {
	return &Provider{Client: client, Log: log, PreferNonJapaneseReleases: preferNonJapanese}
}

func (p *Provider) Analyze(ctx context.Context, tracks []lastfm.Track, pending provider.PendingState) ([]provider.TrackSuggestions, error) {
	var out []provider.TrackSuggestions

	for i, t := range tracks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.Album == "" || !isCompilation(nil, t.Album) {
			continue
		}

		recs, err := p.Client.Search(ctx, SearchParams{Track: t.Name, Artist: t.Artist, Album: t.Album})
		if err != nil {
			p.Log.Info("musicbrainz search failed, skipping track", "track", t.Name, "artist", t.Artist, "error", err.Error())
			continue
		}
		if len(recs) == 0 {
			continue
		}

		best := selectCanonicalRelease(recs[0].Releases, recs[0].Title, p.PreferNonJapaneseReleases)
		if best == nil || best.Title == t.Album {
			continue
		}

		edit := lastfm.NoOpEdit(t)
		edit.AlbumName = best.Title
		if len(best.ArtistCredit) > 0 {
			edit.AlbumArtistName = best.ArtistCredit[0].Name
		}
		if edit.IsNoOp() {
			continue
		}

		out = append(out, provider.TrackSuggestions{
			TrackIndex: i,
			Suggestions: []provider.SuggestionWithContext{{
				Suggestion:           provider.Suggestion{Edit: &edit},
				Motivation:           "scrobble's album looks like a compilation; canonical studio release found on MusicBrainz",
				RequiresConfirmation: true,
			}},
		})
	}
	return out, nil
}
