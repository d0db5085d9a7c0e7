// Package cached wraps a lastfm.TrackProvider with a state.TrackCache,
// serving reads from the local cache and only consulting the underlying
// provider when the cache is empty or the caller asks for more tracks than
// it holds.
package cached

import (
	"context"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/state"
)

// Provider is a lastfm.TrackProvider backed by a state.TrackCache.
type Provider struct {
	Underlying lastfm.TrackProvider
	Cache      *state.TrackCache
}

var _ lastfm.TrackProvider = (*Provider)(nil)

// New returns a cache-backed TrackProvider.
func New(underlying lastfm.TrackProvider, cache *state.TrackCache) *Provider {
	return &Provider{Underlying: underlying, Cache: cache}
}

// FetchRecentTracks serves from the cache when it already holds at least
// limit tracks; otherwise it refills from the underlying provider and
// merges the result into the cache before returning.
func (p *Provider) FetchRecentTracks(ctx context.Context, limit int) ([]lastfm.Track, error) {
	cached := p.Cache.RecentTracks()
	if limit >= 0 && len(cached) >= limit {
		return cached[:limit], nil
	}

	fetched, err := p.Underlying.FetchRecentTracks(ctx, limit)
	if err != nil {
		return nil, err
	}
	if err := p.Cache.MergeRecentTracks(fetched); err != nil {
		return nil, err
	}

	merged := p.Cache.RecentTracks()
	if limit >= 0 && limit < len(merged) {
		return merged[:limit], nil
	}
	return merged, nil
}

// FetchArtistTracks serves from the cache if present, otherwise refreshes
// the cache wholesale from the underlying provider (an artist refresh is a
// full resync, not an incremental merge: see state.TrackCache.ReplaceArtistTracks).
func (p *Provider) FetchArtistTracks(ctx context.Context, artist string, limit int) ([]lastfm.Track, error) {
	if cached, ok := p.Cache.ArtistTracks(artist); ok {
		if limit >= 0 && limit < len(cached) {
			return cached[:limit], nil
		}
		return cached, nil
	}
	return p.RefreshArtist(ctx, artist, limit)
}

// RefreshArtist forces a resync of artist's track list from the underlying
// provider, replacing whatever the cache currently holds.
func (p *Provider) RefreshArtist(ctx context.Context, artist string, limit int) ([]lastfm.Track, error) {
	fetched, err := p.Underlying.FetchArtistTracks(ctx, artist, limit)
	if err != nil {
		return nil, err
	}
	if err := p.Cache.ReplaceArtistTracks(artist, fetched); err != nil {
		return nil, err
	}
	return fetched, nil
}
