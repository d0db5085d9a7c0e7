package compilation

import "testing"

func TestIsCompilationBySecondaryType(t *testing.T) {
	rg := &ReleaseGroup{PrimaryType: "Album", SecondaryTypes: []string{"Compilation"}}
	if !isCompilation(rg, "Some Album") {
		t.Error("secondary type Compilation should classify as a compilation")
	}
}

func TestIsCompilationByTitleMarker(t *testing.T) {
	if !isCompilation(nil, "Greatest Hits") {
		t.Error(`"Greatest Hits" should classify as a compilation by title`)
	}
	if isCompilation(nil, "OK Computer") {
		t.Error(`"OK Computer" should not classify as a compilation`)
	}
}

func TestIsCanonicalAlbumRejectsNonOfficial(t *testing.T) {
	r := &Release{Status: "Bootleg"}
	if isCanonicalAlbum(r) {
		t.Error("a bootleg release should not be canonical")
	}
}

func TestIsCanonicalAlbumRejectsCompilationReleaseGroup(t *testing.T) {
	r := &Release{
		Status:       "Official",
		ReleaseGroup: &ReleaseGroup{PrimaryType: "Album", SecondaryTypes: []string{"Compilation"}},
	}
	if isCanonicalAlbum(r) {
		t.Error("a release whose group is a compilation should not be canonical")
	}
}

func TestSelectCanonicalReleasePrefersEarliestOfficialAlbum(t *testing.T) {
	releases := []Release{
		{ID: "3", Title: "Greatest Hits", Date: "2005", Status: "Official", ReleaseGroup: &ReleaseGroup{PrimaryType: "Album", SecondaryTypes: []string{"Compilation"}}},
		{ID: "2", Title: "OK Computer", Date: "1997-05-21", Status: "Official", ReleaseGroup: &ReleaseGroup{PrimaryType: "Album"}},
		{ID: "1", Title: "OK Computer", Date: "1997-05-20", Status: "Official", ReleaseGroup: &ReleaseGroup{PrimaryType: "Album"}},
	}
	best := selectCanonicalRelease(releases, "Airbag", false)
	if best == nil || best.ID != "1" {
		t.Errorf("got %+v; want the earliest non-compilation release (ID=1)", best)
	}
}

func TestSelectCanonicalReleaseEmptyReturnsNil(t *testing.T) {
	if selectCanonicalRelease(nil, "x", false) != nil {
		t.Error("empty release list should return nil")
	}
}

func TestIsCompilationByDecadeMarker(t *testing.T) {
	if !isCompilation(nil, "1962–1966") {
		t.Error(`"1962–1966" should classify as a compilation by its bare decade title`)
	}
	if !isCompilation(nil, "1967–1970") {
		t.Error(`"1967–1970" should classify as a compilation by its bare decade title`)
	}
	if !isCompilation(nil, "1") {
		t.Error(`"1" should classify as a compilation by its bare numeric title`)
	}
	if isCompilation(nil, "19") {
		t.Error(`"19" is not one of the curated bare numeric titles and should not classify as a compilation`)
	}
}

func TestSelectCanonicalReleaseMovesBeatlesTrackOffRedAlbum(t *testing.T) {
	releases := []Release{
		{ID: "red", Title: "1962–1966", Date: "1973-04-19", Status: "Official", ReleaseGroup: &ReleaseGroup{PrimaryType: "Album", SecondaryTypes: []string{"Compilation"}}},
		{ID: "ppm", Title: "Please Please Me", Date: "1963-03-22", Status: "Official", ReleaseGroup: &ReleaseGroup{PrimaryType: "Album"}},
	}
	best := selectCanonicalRelease(releases, "Love Me Do", false)
	if best == nil || best.ID != "ppm" {
		t.Errorf("got %+v; want Please Please Me (ID=ppm), never the 1962–1966 compilation", best)
	}
}

func TestSelectCanonicalReleaseFallsBackWhenNoOfficialAlbum(t *testing.T) {
	releases := []Release{
		{ID: "1", Title: "Bootleg Recording", Date: "2001", Status: "Bootleg"},
	}
	best := selectCanonicalRelease(releases, "Some Track", false)
	if best == nil || best.ID != "1" {
		t.Errorf("got %+v; want the only available release as a last resort", best)
	}
}
