package lastfm

import "context"

// TrackProvider supplies scrobbles for the scrubber loop to analyze.
// Implementations: Client (direct, always hits the remote service) and the
// cached wrapper in the lastfm/cached package (serves from a local
// TrackCache, refilling it from an underlying TrackProvider on demand).
type TrackProvider interface {
	// FetchRecentTracks returns up to limit of the user's most recent
	// scrobbles, newest first.
	FetchRecentTracks(ctx context.Context, limit int) ([]Track, error)
	// FetchArtistTracks returns up to limit scrobbles of artist, newest
	// first.
	FetchArtistTracks(ctx context.Context, artist string, limit int) ([]Track, error)
}

// EditClient applies approved ScrobbleEdits against the remote service.
type EditClient interface {
	ApplyEdit(ctx context.Context, edit ScrobbleEdit) error
}

var (
	_ TrackProvider = (*Client)(nil)
	_ EditClient    = (*Client)(nil)
)
