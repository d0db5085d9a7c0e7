// Package lastfm models the remote scrobble service: the Track and
// ScrobbleEdit data types, the read/write capabilities the rest of the
// engine depends on (TrackProvider, EditClient), and the concrete clients
// that implement them against Last.fm's public JSON API (reads) and its
// unofficial HTML editing forms (edits).
package lastfm

// Track is an immutable scrobble record as returned by a TrackProvider.
// The tuple (Name, Artist, Album, Timestamp) identifies a scrobble.
type Track struct {
	Name         string
	Artist       string
	Album        string // may be empty
	AlbumArtist  string // may be empty
	Timestamp    int64  // unix seconds; 0 means unknown
	HasTimestamp bool
	PlayCount    int
}

// ScrobbleEdit represents a proposed or applied mutation to a scrobble.
// The *Original fields pin the target scrobble; the unprefixed fields carry
// the new values. EditAll, if true, means "apply to every past scrobble
// matching the originals" — the exact retroactive semantics are opaque and
// passed through to the remote service unchanged (spec Open Question).
type ScrobbleEdit struct {
	TrackNameOriginal       string
	TrackName               string
	ArtistNameOriginal      string
	ArtistName              string
	AlbumNameOriginal       string
	AlbumName               string
	AlbumArtistNameOriginal string
	AlbumArtistName         string
	Timestamp               int64
	EditAll                 bool
}

// IsNoOp reports whether every original/new pair in e is equal.
func (e ScrobbleEdit) IsNoOp() bool {
	return e.TrackNameOriginal == e.TrackName &&
		e.ArtistNameOriginal == e.ArtistName &&
		e.AlbumNameOriginal == e.AlbumName &&
		e.AlbumArtistNameOriginal == e.AlbumArtistName
}

// NoOpEdit builds a baseline ScrobbleEdit from a track: original and new
// fields are identical, so ApplyAllRules can mutate the new fields in place
// and the change bit tells the caller whether anything moved.
func NoOpEdit(t Track) ScrobbleEdit {
	return ScrobbleEdit{
		TrackNameOriginal:  t.Name,
		TrackName:          t.Name,
		ArtistNameOriginal: t.Artist,
		ArtistName:         t.Artist,
		AlbumNameOriginal:  t.Album,
		AlbumName:          t.Album,
		// AlbumArtist is always empty for a Track; Last.fm doesn't expose it
		// on scrobbles, only on edits.
		Timestamp: t.Timestamp,
	}
}
