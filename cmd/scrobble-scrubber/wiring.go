package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/kbuilds/scrobble-scrubber/internal/config"
	"github.com/kbuilds/scrobble-scrubber/internal/events"
	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/lastfm/cached"
	"github.com/kbuilds/scrobble-scrubber/internal/provider"
	"github.com/kbuilds/scrobble-scrubber/internal/provider/compilation"
	"github.com/kbuilds/scrobble-scrubber/internal/provider/llm"
	"github.com/kbuilds/scrobble-scrubber/internal/provider/rules"
	"github.com/kbuilds/scrobble-scrubber/internal/scrubber"
	"github.com/kbuilds/scrobble-scrubber/internal/session"
	"github.com/kbuilds/scrobble-scrubber/internal/state"
)

// app bundles everything a subcommand needs once configuration, state, and
// clients have been wired together.
type app struct {
	log       logr.Logger
	store     *state.Store
	scheduler *scrubber.Scheduler
	bus       *events.Bus
}

// buildApp loads config, opens the state store and track cache, logs into
// Last.fm (restoring a saved session when possible), and assembles the
// action-provider chain and scheduler. Subcommands call this once and then
// invoke the Run mode they were asked for.
func buildApp(ctx context.Context, flags *globalFlags) (*app, error) {
	log := newLogger()

	cfgPath := flags.configPath
	if cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg = config.ApplyEnvOverrides(cfg, "")

	if flags.lastfmUsername != "" {
		cfg.LastFM.Username = flags.lastfmUsername
	}
	if flags.lastfmPassword != "" {
		cfg.LastFM.Password = flags.lastfmPassword
	}
	if flags.dryRun {
		cfg.Scrubber.DryRun = true
	}
	if flags.requireConfirmation {
		cfg.Scrubber.RequireConfirmation = true
	}

	statePath := flags.stateFile
	if statePath == "" {
		statePath = cfg.Storage.StateFile
	}
	if statePath == "" {
		home, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		statePath = filepath.Join(filepath.Dir(home), "state.json")
	}
	store, err := state.Open(statePath)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	cachePath := filepath.Join(filepath.Dir(statePath), "track_cache.json")
	trackCache, err := state.OpenTrackCache(cachePath)
	if err != nil {
		return nil, fmt.Errorf("opening track cache: %w", err)
	}

	sessionDir := filepath.Join(filepath.Dir(statePath), "sessions")
	sessionMgr, err := session.NewManager(sessionDir)
	if err != nil {
		return nil, fmt.Errorf("opening session manager: %w", err)
	}
	if cfg.LastFM.Username == "" {
		cfg.LastFM.Username = sessionMgr.RecentUsername()
	}

	lastfmCfg := lastfm.Config{
		Username: cfg.LastFM.Username,
		Password: cfg.LastFM.Password,
		DryRun:   cfg.Scrubber.DryRun,
		QPS:      rate.Limit(2),
		Log:      log,
	}

	client, err := loginClient(ctx, sessionMgr, lastfmCfg)
	if err != nil {
		return nil, fmt.Errorf("logging in to last.fm: %w", err)
	}

	trackProvider := cached.New(client, trackCache)

	bus := events.New()
	providers := buildProviders(cfg, store, log)

	sched := &scrubber.Scheduler{
		Store:     store,
		Tracks:    trackProvider,
		Editor:    client,
		Providers: providers,
		Bus:       bus,
		Config: scrubber.Config{
			Interval:                        time.Duration(cfg.Scrubber.Interval) * time.Second,
			MaxTracks:                       int(cfg.Scrubber.MaxTracks),
			ProcessingBatchSize:             int(cfg.Scrubber.ProcessingBatchSize),
			DryRun:                          cfg.Scrubber.DryRun,
			RequireConfirmation:             cfg.Scrubber.RequireConfirmation,
			RequireProposedRuleConfirmation: cfg.Scrubber.RequireProposedRuleConfirmation,
		}.ApplyDefaults(),
		Log: log,
	}

	return &app{log: log, store: store, scheduler: sched, bus: bus}, nil
}

// loginClient tries to restore a saved session first; if restoration fails
// or there is none, it falls back to a fresh login (skipped entirely in dry
// run, where Login is a no-op).
func loginClient(ctx context.Context, mgr *session.Manager, cfg lastfm.Config) (*lastfm.Client, error) {
	if restored, err := mgr.TryRestore(cfg); err == nil && restored != nil {
		return restored, nil
	}
	return mgr.CreateAndSave(ctx, cfg)
}

func buildProviders(cfg config.Config, store *state.Store, log logr.Logger) []provider.ActionProvider {
	var providers []provider.ActionProvider

	if cfg.Providers.EnableRewriteRules {
		providers = append(providers, rules.New(store.LoadRules, log))
	}
	if cfg.Providers.EnableMusicBrainz {
		mbCfg := cfg.Providers.MusicBrainz
		mb := compilation.NewClient(compilation.ClientConfig{
			QPS:                 rate.Limit(1000.0 / float64(max1(mbCfg.APIDelayMS))),
			Log:                 log,
			MaxResults:          mbCfg.MaxResults,
			ConfidenceThreshold: mbCfg.ConfidenceThreshold,
		})
		providers = append(providers, compilation.New(mb, log, mbCfg.PreferNonJapaneseReleases))
	}
	if cfg.Providers.EnableOpenAI {
		providers = append(providers, llm.New(llm.Config{
			APIKey: cfg.Providers.OpenAI.APIKey,
			Model:  cfg.Providers.OpenAI.Model,
			Log:    log,
		}))
	}
	return providers
}

func max1(ms uint32) uint32 {
	if ms == 0 {
		return 1000
	}
	return ms
}
