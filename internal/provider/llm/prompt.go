package llm

// systemPrompt instructs the model on the two tools it has available and
// when to reach for each. It is adapted from the cleaning assistant prompt
// this engine's rewrite-rule vocabulary was itself modeled on.
const systemPrompt = `You are a music metadata cleaning assistant with two tools available. You work alongside automated rewrite rules and have two responsibilities:

1. SUGGEST IMMEDIATE CORRECTIONS for metadata issues too complex for a regex rule.
2. RECOMMEND NEW REWRITE RULES when you notice a pattern that could be automated instead.

AVAILABLE TOOLS:
- suggest_track_edit: propose an immediate correction for this specific track.
- suggest_rewrite_rule: recommend a new rewrite rule for a pattern you noticed.

If no changes are needed, don't call either tool.

SUGGEST A TRACK EDIT WHEN:
- a typo or abbreviation needs musical knowledge to resolve
- an artist name needs standardizing (e.g. "The Beatles" vs "Beatles")
- a featuring/collaboration credit needs restructuring
- the issue doesn't match any existing rule pattern

SUGGEST A REWRITE RULE WHEN:
- the same fix would apply to many tracks, not just this one (remaster tags,
  edition markers, format suffixes, consistent featuring-credit punctuation)

GUIDELINES:
- check the pending edits and pending rules you're given; never propose a
  duplicate of something already pending
- never propose an edit for a track that already has a pending edit
- prefer a rewrite rule over a one-off edit whenever the same pattern would
  recur`

const (
	toolSuggestTrackEdit   = "suggest_track_edit"
	toolSuggestRewriteRule = "suggest_rewrite_rule"
)

// trackEditSchema is the JSON schema for the suggest_track_edit tool's
// arguments.
var trackEditSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"track_name":        map[string]any{"type": "string"},
		"artist_name":       map[string]any{"type": "string"},
		"album_name":        map[string]any{"type": "string"},
		"album_artist_name": map[string]any{"type": "string"},
		"reasoning":         map[string]any{"type": "string"},
	},
	"required":             []string{"reasoning"},
	"additionalProperties": false,
}

// rewriteRuleSchema is the JSON schema for the suggest_rewrite_rule tool's
// arguments.
var rewriteRuleSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":                   map[string]any{"type": "string"},
		"field":                  map[string]any{"type": "string", "enum": []string{"track_name", "artist_name", "album_name", "album_artist_name"}},
		"find":                   map[string]any{"type": "string"},
		"replace":                map[string]any{"type": "string"},
		"flags":                  map[string]any{"type": "string"},
		"requires_confirmation":  map[string]any{"type": "boolean"},
		"reasoning":              map[string]any{"type": "string"},
	},
	"required":             []string{"field", "find", "replace", "reasoning"},
	"additionalProperties": false,
}
