// Package config loads scrobble-scrubber's configuration from a TOML file
// plus optional environment overrides for credentials, the way
// GoogleCloudPlatform-prometheus-engine's flat TOML option structs and
// kirbs-btw-spotify-playlist-dataset's .env-backed credentials are loaded.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ScrubberConfig bounds the scheduler's cycle behavior.
type ScrubberConfig struct {
	Interval                        uint64 `toml:"interval"`
	MaxTracks                       uint32 `toml:"max_tracks"`
	ProcessingBatchSize             uint32 `toml:"processing_batch_size"`
	DryRun                          bool   `toml:"dry_run"`
	RequireConfirmation             bool   `toml:"require_confirmation"`
	RequireProposedRuleConfirmation bool   `toml:"require_proposed_rule_confirmation"`
}

// OpenAIConfig configures the optional LLM action provider.
type OpenAIConfig struct {
	APIKey       string `toml:"api_key"`
	Model        string `toml:"model"`
	SystemPrompt string `toml:"system_prompt"`
}

// MusicBrainzConfig configures the optional compilation-to-canonical
// provider's MusicBrainz client.
type MusicBrainzConfig struct {
	ConfidenceThreshold       float64 `toml:"confidence_threshold"`
	MaxResults                uint32  `toml:"max_results"`
	APIDelayMS                uint32  `toml:"api_delay_ms"`
	PreferNonJapaneseReleases bool    `toml:"prefer_non_japanese_releases"`
}

// ProvidersConfig toggles which action providers run and configures each.
type ProvidersConfig struct {
	EnableRewriteRules bool              `toml:"enable_rewrite_rules"`
	EnableOpenAI       bool              `toml:"enable_openai"`
	OpenAI             OpenAIConfig      `toml:"openai"`
	EnableMusicBrainz  bool              `toml:"enable_musicbrainz"`
	MusicBrainz        MusicBrainzConfig `toml:"musicbrainz"`
}

// StorageConfig points at the durable state file.
type StorageConfig struct {
	StateFile string `toml:"state_file"`
}

// LastFMConfig holds Last.fm connection details; Username/Password are
// typically supplied via environment rather than TOML (see ApplyEnvOverrides).
type LastFMConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	BaseURL  string `toml:"base_url"`
}

// Config is the root of config.toml.
type Config struct {
	Scrubber  ScrubberConfig  `toml:"scrubber"`
	Providers ProvidersConfig `toml:"providers"`
	Storage   StorageConfig   `toml:"storage"`
	LastFM    LastFMConfig    `toml:"lastfm"`
}

// Defaults returns the documented option defaults.
func Defaults() Config {
	return Config{
		Scrubber: ScrubberConfig{
			Interval:                        300,
			MaxTracks:                       1000,
			ProcessingBatchSize:             1,
			RequireProposedRuleConfirmation: true,
		},
		Providers: ProvidersConfig{
			EnableRewriteRules: true,
		},
	}
}

// DefaultPath returns the XDG-preferred config path,
// ~/.config/scrobble-scrubber/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "scrobble-scrubber", "config.toml"), nil
	}
	return filepath.Join(home, ".config", "scrobble-scrubber", "config.toml"), nil
}

// Load reads and decodes the TOML file at path over top of Defaults().
// Unrecognized keys are ignored per spec. A missing file is not an error:
// the defaults are returned as-is, matching a fresh install with no config
// yet written.
func Load(path string) (Config, error) {
	cfg := Defaults()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if _, err := toml.Decode(string(b), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvOverrides loads a sibling .env file (if present; a missing one is
// not an error) and overlays LASTFM_USERNAME, LASTFM_PASSWORD, and
// OPENAI_API_KEY onto cfg so secrets need not live in the TOML file.
func ApplyEnvOverrides(cfg Config, envPath string) Config {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}
	if v := os.Getenv("LASTFM_USERNAME"); v != "" {
		cfg.LastFM.Username = v
	}
	if v := os.Getenv("LASTFM_PASSWORD"); v != "" {
		cfg.LastFM.Password = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAI.APIKey = v
	}
	return cfg
}
