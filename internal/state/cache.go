package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
)

// trackKey identifies a scrobble for de-dup purposes.
type trackKey struct {
	Name      string
	Artist    string
	Timestamp int64
}

// TrackCache persists recently-seen tracks and per-artist track lists so a
// Cached track provider can serve reads without hitting the remote service.
// It is safe for concurrent use.
type TrackCache struct {
	path string
	mu   sync.Mutex
	doc  cacheDocument
}

type cacheDocument struct {
	RecentTracks []lastfm.Track            `json:"recent_tracks"`
	ArtistTracks map[string][]lastfm.Track `json:"artist_tracks"`
}

// OpenTrackCache loads (or initializes) the track cache backed by path.
func OpenTrackCache(path string) (*TrackCache, error) {
	c := &TrackCache{path: path, doc: cacheDocument{ArtistTracks: map[string][]lastfm.Track{}}}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, &ErrCorrupt{Path: path, Err: err}
	}
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, &c.doc); err != nil {
		return nil, &ErrCorrupt{Path: path, Err: err}
	}
	if c.doc.ArtistTracks == nil {
		c.doc.ArtistTracks = map[string][]lastfm.Track{}
	}
	return c, nil
}

func (c *TrackCache) save() error {
	b, err := json.MarshalIndent(c.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling track cache: %w", err)
	}
	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".trackcache-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp cache file: %w", err)
	}
	return nil
}

// RecentTracks returns a copy of the cached recent-tracks list, newest
// first.
func (c *TrackCache) RecentTracks() []lastfm.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]lastfm.Track, len(c.doc.RecentTracks))
	copy(out, c.doc.RecentTracks)
	return out
}

// MergeRecentTracks de-dups fetched against cached tracks by
// (name, artist, timestamp), then re-sorts the union descending by
// timestamp (tracks lacking a timestamp sort last, order preserved among
// themselves) and persists the result. Tracks lacking a timestamp are not
// de-duplicated.
func (c *TrackCache) MergeRecentTracks(fetched []lastfm.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[trackKey]bool, len(c.doc.RecentTracks)+len(fetched))
	var merged []lastfm.Track
	add := func(t lastfm.Track) {
		if t.HasTimestamp {
			k := trackKey{Name: t.Name, Artist: t.Artist, Timestamp: t.Timestamp}
			if seen[k] {
				return
			}
			seen[k] = true
		}
		merged = append(merged, t)
	}
	for _, t := range c.doc.RecentTracks {
		add(t)
	}
	for _, t := range fetched {
		add(t)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.HasTimestamp != b.HasTimestamp {
			return a.HasTimestamp // timestamped tracks sort before untimestamped ones
		}
		if !a.HasTimestamp {
			return false
		}
		return a.Timestamp > b.Timestamp
	})

	c.doc.RecentTracks = merged
	return c.save()
}

// ArtistTracks returns the cached track list for artist, if any.
func (c *TrackCache) ArtistTracks(artist string) ([]lastfm.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.doc.ArtistTracks[artist]
	if !ok {
		return nil, false
	}
	out := make([]lastfm.Track, len(t))
	copy(out, t)
	return out, true
}

// ReplaceArtistTracks replaces the cached list for artist wholesale: an
// artist refresh is a full resync, not an incremental merge, since
// compilation/canonical-album classification must see the service's
// current truth rather than an accreted local view.
func (c *TrackCache) ReplaceArtistTracks(artist string, tracks []lastfm.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]lastfm.Track, len(tracks))
	copy(cp, tracks)
	c.doc.ArtistTracks[artist] = cp
	return c.save()
}

// ClearArtistTracks drops the cached list for artist, forcing the next read
// to refetch from the remote service.
func (c *TrackCache) ClearArtistTracks(artist string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.doc.ArtistTracks, artist)
	return c.save()
}

// Clear empties the entire cache.
func (c *TrackCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc = cacheDocument{ArtistTracks: map[string][]lastfm.Track{}}
	return c.save()
}
