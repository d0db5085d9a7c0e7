package lastfm

import (
	"context"
	"sync"
)

// Fake is an in-memory TrackProvider and EditClient for tests: it serves a
// fixed RecentTracks/ArtistTracks fixture and records every ApplyEdit call
// rather than talking to a real service.
type Fake struct {
	mu sync.Mutex

	RecentTracksFixture []Track
	ArtistTracksFixture map[string][]Track

	AppliedEdits []ScrobbleEdit
	FailNextEdit error // if set, the next ApplyEdit call returns this error and clears it
}

var (
	_ TrackProvider = (*Fake)(nil)
	_ EditClient    = (*Fake)(nil)
)

// NewFake returns a ready-to-use Fake.
func NewFake() *Fake {
	return &Fake{ArtistTracksFixture: map[string][]Track{}}
}

func (f *Fake) FetchRecentTracks(ctx context.Context, limit int) ([]Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit >= 0 && limit < len(f.RecentTracksFixture) {
		return append([]Track(nil), f.RecentTracksFixture[:limit]...), nil
	}
	return append([]Track(nil), f.RecentTracksFixture...), nil
}

func (f *Fake) FetchArtistTracks(ctx context.Context, artist string, limit int) ([]Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tracks := f.ArtistTracksFixture[artist]
	if limit >= 0 && limit < len(tracks) {
		return append([]Track(nil), tracks[:limit]...), nil
	}
	return append([]Track(nil), tracks...), nil
}

func (f *Fake) ApplyEdit(ctx context.Context, edit ScrobbleEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNextEdit != nil {
		err := f.FailNextEdit
		f.FailNextEdit = nil
		return err
	}
	f.AppliedEdits = append(f.AppliedEdits, edit)
	return nil
}
