package compilation

import "strings"

// compilationSecondaryTypes lists MusicBrainz release-group secondary types
// that mark a release as not a studio album proper.
var compilationSecondaryTypes = map[string]bool{
	"Compilation": true,
	"Soundtrack":  true,
	"Interview":   true,
	"Audiobook":   true,
	"Live":        true,
	"DJ-mix":      true,
}

// titleMarkers catches compilation albums whose release group metadata is
// incomplete but whose title gives it away.
var titleMarkers = []string{
	"greatest hits",
	"best of",
	"anthology",
	"collection",
	"hits",
}

// decadeMarkers are bare numeric compilation titles, matched as the whole
// title rather than a substring so a studio album never trips on a number
// appearing incidentally in its name.
var decadeMarkers = map[string]bool{
	"1962–1966": true,
	"1967–1970": true,
	"1":          true,
}

// isCompilation reports whether album looks like a compilation, either by
// MusicBrainz release-group classification or by title convention.
func isCompilation(rg *ReleaseGroup, albumTitle string) bool {
	if rg != nil {
		for _, t := range rg.SecondaryTypes {
			if compilationSecondaryTypes[t] {
				return true
			}
		}
	}
	trimmed := strings.TrimSpace(albumTitle)
	if decadeMarkers[trimmed] {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, marker := range titleMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// isCanonicalAlbum reports whether r is a usable canonical-release
// candidate: an official, non-compilation studio release.
func isCanonicalAlbum(r *Release) bool {
	if r.Status != "" && r.Status != "Official" {
		return false
	}
	if r.ReleaseGroup == nil {
		return true
	}
	if r.ReleaseGroup.PrimaryType != "" && r.ReleaseGroup.PrimaryType != "Album" {
		return false
	}
	return !isCompilation(r.ReleaseGroup, r.Title)
}

// selectCanonicalRelease picks the earliest official non-compilation
// release whose title isn't just the track title (a lone-single release),
// falling back progressively if no strict match exists. Returns nil if
// releases is empty. preferNonJapanese breaks same-date ties in favor of a
// non-Japanese release.
func selectCanonicalRelease(releases []Release, trackTitle string, preferNonJapanese bool) *Release {
	if len(releases) == 0 {
		return nil
	}
	cp := append([]Release(nil), releases...)
	sortReleasesCanonicalFirst(cp, preferNonJapanese)

	for i := range cp {
		r := &cp[i]
		if r.Title != trackTitle && isCanonicalAlbum(r) {
			return r
		}
	}
	for i := range cp {
		r := &cp[i]
		if r.Title != trackTitle && r.Status == "Official" {
			return r
		}
	}
	for i := range cp {
		r := &cp[i]
		if r.Title != trackTitle {
			return r
		}
	}
	return &cp[0]
}
