// Package llm implements the optional LLM-backed action provider: it hands
// a batch of tracks to a tool-calling chat model and turns suggest_track_edit
// / suggest_rewrite_rule tool calls into Suggestions.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/provider"
	"github.com/kbuilds/scrobble-scrubber/internal/rewrite"
)

// SchemaError indicates a tool call's arguments didn't match the schema the
// model was given. It is never fatal: the offending call is dropped and
// logged, the rest of the batch continues.
type SchemaError struct {
	Tool string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("llm: malformed %s arguments: %v", e.Tool, e.Err)
}
func (e *SchemaError) Unwrap() error { return e.Err }

// Config configures a Provider.
type Config struct {
	APIKey string
	Model  string // e.g. "gpt-4o-mini"
	Log    logr.Logger
}

// Provider is the LLM action provider.
type Provider struct {
	client openai.Client
	model  string
	log    logr.Logger
}

var _ provider.ActionProvider = (*Provider)(nil)

// New returns a Provider backed by an OpenAI-compatible chat-completions
// endpoint.
func New(cfg Config) *Provider {
	return &Provider{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
		log:    cfg.Log,
	}
}

func (p *Provider) tools() []openai.ChatCompletionToolUnionParam {
	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        toolSuggestTrackEdit,
			Description: openai.String("Propose an immediate metadata correction for this track."),
			Parameters:  trackEditSchema,
		}),
		openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        toolSuggestRewriteRule,
			Description: openai.String("Recommend a new rewrite rule for a pattern spanning many tracks."),
			Parameters:  rewriteRuleSchema,
		}),
	}
}

func (p *Provider) Analyze(ctx context.Context, tracks []lastfm.Track, pending provider.PendingState) ([]provider.TrackSuggestions, error) {
	var out []provider.TrackSuggestions

	for i, t := range tracks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sugs, err := p.analyzeTrack(ctx, t, pending)
		if err != nil {
			p.log.Info("llm analysis failed for track, skipping", "track", t.Name, "artist", t.Artist, "error", err.Error())
			continue
		}
		if len(sugs) == 0 {
			continue
		}
		out = append(out, provider.TrackSuggestions{TrackIndex: i, Suggestions: sugs})
	}
	return out, nil
}

func (p *Provider) analyzeTrack(ctx context.Context, t lastfm.Track, pending provider.PendingState) ([]provider.SuggestionWithContext, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(t, pending)),
		},
		Tools: p.tools(),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}

	var out []provider.SuggestionWithContext
	for _, call := range resp.Choices[0].Message.ToolCalls {
		sug, err := p.parseToolCall(t, call)
		if err != nil {
			p.log.Info("dropping malformed tool call", "tool", call.Function.Name, "error", err.Error())
			continue
		}
		if sug != nil {
			out = append(out, *sug)
		}
	}
	return out, nil
}

func userPrompt(t lastfm.Track, pending provider.PendingState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Track: %q\nArtist: %q\nAlbum: %q\n", t.Name, t.Artist, t.Album)
	if len(pending.PendingEdits) > 0 {
		b.WriteString("\nPending edits already awaiting approval:\n")
		for _, e := range pending.PendingEdits {
			fmt.Fprintf(&b, "- %s / %s -> %s / %s\n", e.TrackNameOriginal, e.ArtistNameOriginal, e.TrackName, e.ArtistName)
		}
	}
	if len(pending.PendingRules) > 0 {
		b.WriteString("\nRewrite rules already pending:\n")
		for _, r := range pending.PendingRules {
			fmt.Fprintf(&b, "- %s\n", r.Name)
		}
	}
	return b.String()
}

func (p *Provider) parseToolCall(t lastfm.Track, call openai.ChatCompletionMessageToolCallUnion) (*provider.SuggestionWithContext, error) {
	switch call.Function.Name {
	case toolSuggestTrackEdit:
		var args struct {
			TrackName       string `json:"track_name"`
			ArtistName      string `json:"artist_name"`
			AlbumName       string `json:"album_name"`
			AlbumArtistName string `json:"album_artist_name"`
			Reasoning       string `json:"reasoning"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, &SchemaError{Tool: call.Function.Name, Err: err}
		}
		edit := lastfm.NoOpEdit(t)
		if args.TrackName != "" {
			edit.TrackName = args.TrackName
		}
		if args.ArtistName != "" {
			edit.ArtistName = args.ArtistName
		}
		if args.AlbumName != "" {
			edit.AlbumName = args.AlbumName
		}
		if args.AlbumArtistName != "" {
			edit.AlbumArtistName = args.AlbumArtistName
		}
		if edit.IsNoOp() {
			return nil, nil
		}
		return &provider.SuggestionWithContext{
			Suggestion:           provider.Suggestion{Edit: &edit},
			Motivation:           args.Reasoning,
			RequiresConfirmation: true,
		}, nil

	case toolSuggestRewriteRule:
		var args struct {
			Name                 string `json:"name"`
			Field                string `json:"field"`
			Find                 string `json:"find"`
			Replace              string `json:"replace"`
			Flags                string `json:"flags"`
			RequiresConfirmation bool   `json:"requires_confirmation"`
			Reasoning            string `json:"reasoning"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, &SchemaError{Tool: call.Function.Name, Err: err}
		}
		rule := rewrite.RewriteRule{Name: args.Name, RequiresConfirmation: args.RequiresConfirmation}
		sd := &rewrite.SdRule{Find: args.Find, Replace: args.Replace, Flags: args.Flags}
		switch args.Field {
		case "track_name":
			rule.TrackName = sd
		case "artist_name":
			rule.ArtistName = sd
		case "album_name":
			rule.AlbumName = sd
		case "album_artist_name":
			rule.AlbumArtistName = sd
		default:
			return nil, &SchemaError{Tool: call.Function.Name, Err: fmt.Errorf("unknown field %q", args.Field)}
		}
		return &provider.SuggestionWithContext{
			Suggestion: provider.Suggestion{
				ProposedRule:   &rule,
				RuleMotivation: args.Reasoning,
			},
			Motivation:           args.Reasoning,
			RequiresConfirmation: true,
		}, nil

	default:
		return nil, &SchemaError{Tool: call.Function.Name, Err: fmt.Errorf("unrecognized tool")}
	}
}
