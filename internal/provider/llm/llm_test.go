package llm

import (
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/openai/openai-go"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/provider"
)

func toolCall(name, args string) openai.ChatCompletionMessageToolCallUnion {
	var call openai.ChatCompletionMessageToolCallUnion
	call.Function.Name = name
	call.Function.Arguments = args
	return call
}

func TestParseToolCallTrackEdit(t *testing.T) {
	p := &Provider{log: logr.Discard()}
	track := lastfm.Track{Name: "Hey Jude", Artist: "Beatles"}

	sug, err := p.parseToolCall(track, toolCall(toolSuggestTrackEdit,
		`{"artist_name":"The Beatles","reasoning":"standardize artist name"}`))
	if err != nil {
		t.Fatal(err)
	}
	if sug == nil {
		t.Fatal("expected a suggestion")
	}
	if sug.Suggestion.Edit.ArtistName != "The Beatles" {
		t.Errorf("ArtistName = %q; want %q", sug.Suggestion.Edit.ArtistName, "The Beatles")
	}
	if !sug.RequiresConfirmation {
		t.Error("LLM-proposed edits should always require confirmation")
	}
}

func TestParseToolCallTrackEditNoOpReturnsNil(t *testing.T) {
	p := &Provider{log: logr.Discard()}
	track := lastfm.Track{Name: "Hey Jude", Artist: "Beatles"}

	sug, err := p.parseToolCall(track, toolCall(toolSuggestTrackEdit, `{"reasoning":"nothing to fix"}`))
	if err != nil {
		t.Fatal(err)
	}
	if sug != nil {
		t.Errorf("a no-op edit call should produce no suggestion, got %+v", sug)
	}
}

func TestParseToolCallRewriteRule(t *testing.T) {
	p := &Provider{log: logr.Discard()}
	sug, err := p.parseToolCall(lastfm.Track{}, toolCall(toolSuggestRewriteRule,
		`{"name":"strip remaster","field":"track_name","find":"^(.*) - Remaster$","replace":"$1","reasoning":"recurring pattern"}`))
	if err != nil {
		t.Fatal(err)
	}
	if sug == nil || sug.Suggestion.ProposedRule == nil {
		t.Fatal("expected a proposed rule")
	}
	if sug.Suggestion.ProposedRule.TrackName == nil || sug.Suggestion.ProposedRule.TrackName.Find != "^(.*) - Remaster$" {
		t.Errorf("got %+v", sug.Suggestion.ProposedRule)
	}
}

func TestParseToolCallUnknownFieldIsSchemaError(t *testing.T) {
	p := &Provider{log: logr.Discard()}
	_, err := p.parseToolCall(lastfm.Track{}, toolCall(toolSuggestRewriteRule,
		`{"field":"bogus_field","find":"a","replace":"b","reasoning":"x"}`))
	var se *SchemaError
	if err == nil {
		t.Fatal("expected a SchemaError")
	}
	if !asSchemaError(err, &se) {
		t.Errorf("got %v; want *SchemaError", err)
	}
}

func TestParseToolCallMalformedJSONIsSchemaError(t *testing.T) {
	p := &Provider{log: logr.Discard()}
	_, err := p.parseToolCall(lastfm.Track{}, toolCall(toolSuggestTrackEdit, `not json`))
	var se *SchemaError
	if !asSchemaError(err, &se) {
		t.Errorf("got %v; want *SchemaError", err)
	}
}

func TestParseToolCallUnrecognizedToolIsSchemaError(t *testing.T) {
	p := &Provider{log: logr.Discard()}
	_, err := p.parseToolCall(lastfm.Track{}, toolCall("delete_everything", `{}`))
	var se *SchemaError
	if !asSchemaError(err, &se) {
		t.Errorf("got %v; want *SchemaError", err)
	}
}

func TestUserPromptIncludesPendingState(t *testing.T) {
	pending := provider.PendingState{
		PendingEdits: []lastfm.ScrobbleEdit{{TrackNameOriginal: "A", ArtistNameOriginal: "B", TrackName: "A2", ArtistName: "B2"}},
	}
	prompt := userPrompt(lastfm.Track{Name: "Song", Artist: "Artist"}, pending)
	if !strings.Contains(prompt, "Pending edits") {
		t.Errorf("prompt should mention pending edits: %s", prompt)
	}
}

func asSchemaError(err error, target **SchemaError) bool {
	se, ok := err.(*SchemaError)
	if ok {
		*target = se
	}
	return ok
}
