package state

import (
	"path/filepath"
	"testing"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
)

func TestMergeRecentTracksDedupsAndSorts(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenTrackCache(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.MergeRecentTracks([]lastfm.Track{
		{Name: "A", Artist: "X", Timestamp: 100, HasTimestamp: true},
		{Name: "B", Artist: "X", Timestamp: 200, HasTimestamp: true},
	}); err != nil {
		t.Fatal(err)
	}

	if err := c.MergeRecentTracks([]lastfm.Track{
		{Name: "A", Artist: "X", Timestamp: 100, HasTimestamp: true}, // duplicate
		{Name: "C", Artist: "X", Timestamp: 300, HasTimestamp: true},
	}); err != nil {
		t.Fatal(err)
	}

	got := c.RecentTracks()
	if len(got) != 3 {
		t.Fatalf("got %d tracks; want 3 (duplicate should be merged away): %+v", len(got), got)
	}
	if got[0].Name != "C" || got[1].Name != "B" || got[2].Name != "A" {
		t.Errorf("tracks not sorted descending by timestamp: %+v", got)
	}
}

func TestMergeRecentTracksKeepsUntimestampedTracksLast(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenTrackCache(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.MergeRecentTracks([]lastfm.Track{
		{Name: "now playing", Artist: "X"},
		{Name: "A", Artist: "X", Timestamp: 100, HasTimestamp: true},
	}); err != nil {
		t.Fatal(err)
	}
	got := c.RecentTracks()
	if got[len(got)-1].Name != "now playing" {
		t.Errorf("untimestamped track should sort last, got %+v", got)
	}
}

func TestReplaceArtistTracksIsWholesale(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenTrackCache(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.ReplaceArtistTracks("Radiohead", []lastfm.Track{{Name: "Creep"}, {Name: "Karma Police"}}); err != nil {
		t.Fatal(err)
	}
	if err := c.ReplaceArtistTracks("Radiohead", []lastfm.Track{{Name: "Idioteque"}}); err != nil {
		t.Fatal(err)
	}

	got, ok := c.ArtistTracks("Radiohead")
	if !ok {
		t.Fatal("expected cached entry")
	}
	if len(got) != 1 || got[0].Name != "Idioteque" {
		t.Errorf("ReplaceArtistTracks should overwrite, not merge: got %+v", got)
	}
}

func TestClearArtistTracksRemovesEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenTrackCache(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ReplaceArtistTracks("Radiohead", []lastfm.Track{{Name: "Creep"}}); err != nil {
		t.Fatal(err)
	}
	if err := c.ClearArtistTracks("Radiohead"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.ArtistTracks("Radiohead"); ok {
		t.Error("expected cache entry to be cleared")
	}
}

func TestTrackCachePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")

	c, err := OpenTrackCache(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.MergeRecentTracks([]lastfm.Track{{Name: "A", Artist: "X", Timestamp: 1, HasTimestamp: true}}); err != nil {
		t.Fatal(err)
	}

	c2, err := OpenTrackCache(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(c2.RecentTracks()) != 1 {
		t.Error("track cache should persist across reopen")
	}
}
