package rewrite

// DefaultRules returns a seed set of rewrite rules used when no active rule
// list has yet been persisted to the state store. It targets the common
// cleanup cases: remaster suffixes, ft./featuring normalization, collapsed
// whitespace, and explicit-content tags.
func DefaultRules() []RewriteRule {
	return []RewriteRule{
		{
			Name: "strip remaster suffix",
			TrackName: &SdRule{
				Find: `^(.*?)(?: - \d{4} [Rr]emaster| - [Rr]emaster \d{4}| - [Rr]emaster|` +
					` \(\d{4} [Rr]emaster\)| \([Rr]emaster \d{4}\)| \([Rr]emaster\))$`,
				Replace: "$1",
			},
		},
		{
			Name: "normalize featuring",
			ArtistName: &SdRule{
				Find:    `^(.*) (?:[Ff]t\.|[Ff]eaturing) (.*)$`,
				Replace: "$1 feat. $2",
			},
		},
		{
			Name:       "collapse whitespace",
			TrackName:  &SdRule{Find: `^(.*)\s{2,}(.*)$`, Replace: "$1 $2"},
			ArtistName: &SdRule{Find: `^(.*)\s{2,}(.*)$`, Replace: "$1 $2"},
		},
		{
			Name:       "trim whitespace",
			TrackName:  &SdRule{Find: `^\s*(.*?)\s*$`, Replace: "$1"},
			ArtistName: &SdRule{Find: `^\s*(.*?)\s*$`, Replace: "$1"},
		},
		{
			Name: "remove explicit tag",
			TrackName: &SdRule{
				Find:    `^(.*?)(?: \(Explicit\)| - Explicit)$`,
				Replace: "$1",
			},
		},
	}
}
