package rewrite

import "github.com/kbuilds/scrobble-scrubber/internal/lastfm"

// RewriteRule is a named bundle of up to four whole-string transformations,
// one per metadata field. A rule with all four sub-rules absent is a
// catch-all that matches every track, but never changes anything (so it
// never "applies to" one).
type RewriteRule struct {
	Name                 string
	TrackName            *SdRule
	ArtistName           *SdRule
	AlbumName            *SdRule
	AlbumArtistName      *SdRule
	RequiresConfirmation bool
}

// Matches reports whether r's patterns match track, independent of whether
// applying them would change anything. A present sub-rule must match its
// field ("" for the always-empty AlbumArtist on a Track); absent sub-rules
// are vacuously true.
func (r RewriteRule) Matches(t lastfm.Track) (bool, error) {
	checks := []struct {
		rule  *SdRule
		value string
	}{
		{r.TrackName, t.Name},
		{r.ArtistName, t.Artist},
		{r.AlbumName, t.Album},
		{r.AlbumArtistName, ""},
	}
	for _, c := range checks {
		if c.rule == nil {
			continue
		}
		ok, err := c.rule.Matches(c.value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// AppliesTo reports whether r would actually change the track if applied:
// every present sub-rule must WouldModify its field. This differs from
// Matches, which only checks pattern membership. A rule with no sub-rules
// never applies.
func (r RewriteRule) AppliesTo(t lastfm.Track) (bool, error) {
	checks := []struct {
		rule  *SdRule
		value string
	}{
		{r.TrackName, t.Name},
		{r.ArtistName, t.Artist},
		{r.AlbumName, t.Album},
		{r.AlbumArtistName, ""},
	}
	present := false
	for _, c := range checks {
		if c.rule == nil {
			continue
		}
		present = true
		modified, err := c.rule.WouldModify(c.value)
		if err != nil {
			return false, err
		}
		if !modified {
			return false, nil
		}
	}
	return present, nil
}

// Apply runs each present sub-rule against the corresponding field of edit,
// updating it in place, and returns whether any field actually changed.
func (r RewriteRule) Apply(edit *lastfm.ScrobbleEdit) (bool, error) {
	changed := false

	if r.TrackName != nil {
		out, err := r.TrackName.Apply(edit.TrackName)
		if err != nil {
			return false, err
		}
		if out != edit.TrackName {
			edit.TrackName = out
			changed = true
		}
	}
	if r.ArtistName != nil {
		out, err := r.ArtistName.Apply(edit.ArtistName)
		if err != nil {
			return false, err
		}
		if out != edit.ArtistName {
			edit.ArtistName = out
			changed = true
		}
	}
	if r.AlbumName != nil {
		out, err := r.AlbumName.Apply(edit.AlbumName)
		if err != nil {
			return false, err
		}
		if out != edit.AlbumName {
			edit.AlbumName = out
			changed = true
		}
	}
	if r.AlbumArtistName != nil {
		out, err := r.AlbumArtistName.Apply(edit.AlbumArtistName)
		if err != nil {
			return false, err
		}
		if out != edit.AlbumArtistName {
			edit.AlbumArtistName = out
			changed = true
		}
	}
	return changed, nil
}

// AnyRulesMatch reports whether any rule's patterns match track (used to
// decide whether a track is even worth considering further).
func AnyRulesMatch(rules []RewriteRule, t lastfm.Track) (bool, error) {
	for _, r := range rules {
		ok, err := r.Matches(t)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// AnyRulesApply reports whether any rule would actually change track if
// applied, as opposed to merely matching it.
func AnyRulesApply(rules []RewriteRule, t lastfm.Track) (bool, error) {
	for _, r := range rules {
		ok, err := r.AppliesTo(t)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ApplyAllRules applies rules in order to edit, returning true if any of
// them changed a field.
func ApplyAllRules(rules []RewriteRule, edit *lastfm.ScrobbleEdit) (bool, error) {
	any := false
	for _, r := range rules {
		changed, err := r.Apply(edit)
		if err != nil {
			return false, err
		}
		if changed {
			any = true
		}
	}
	return any, nil
}
