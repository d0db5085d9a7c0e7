// Package compilation implements the compilation-to-canonical action
// provider: for scrobbles whose album looks like a compilation, soundtrack,
// or various-artists release, it asks MusicBrainz for the recording's
// official non-compilation releases and proposes rewriting the scrobble to
// the earliest one.
package compilation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const searchEndpoint = "https://musicbrainz.org/ws/2/recording"
const userAgent = "scrobble-scrubber/0 (+https://github.com/kbuilds/scrobble-scrubber)"

// ArtistCredit is a single artist credited on a recording or release.
type ArtistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

// ReleaseGroup carries the classification fields used to tell a studio
// album apart from a compilation, soundtrack, or live release.
type ReleaseGroup struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	PrimaryType    string   `json:"primary-type,omitempty"`
	SecondaryTypes []string `json:"secondary-types,omitempty"`
}

// Release is one specific issuing of a recording.
type Release struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Status         string         `json:"status,omitempty"`
	Date           string         `json:"date,omitempty"`
	Country        string         `json:"country,omitempty"`
	Disambiguation string         `json:"disambiguation,omitempty"`
	ReleaseGroup   *ReleaseGroup  `json:"release-group,omitempty"`
	ArtistCredit   []ArtistCredit `json:"artist-credit,omitempty"`
}

// Recording is a MusicBrainz recording entity with its known releases.
type Recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Score        Score          `json:"score,omitempty"`
	ArtistCredit []ArtistCredit `json:"artist-credit,omitempty"`
	Releases     []Release      `json:"releases,omitempty"`
}

type searchResponse struct {
	Count      int         `json:"count"`
	Recordings []Recording `json:"recordings"`
}

// Score is MusicBrainz's own 0-100 search-relevance score for a recording
// match (returned as ext:score, serialized as a JSON string).
type Score string

// Float64 parses s as a 0.0-1.0 confidence, defaulting to 1.0 (treat an
// unscored or unparsable result as confident) so a missing score never
// silently filters out every result.
func (s Score) Float64() float64 {
	if s == "" {
		return 1.0
	}
	n, err := strconv.Atoi(string(s))
	if err != nil {
		return 1.0
	}
	return float64(n) / 100.0
}

type cacheEntry struct {
	recordings []Recording
	expiresAt  time.Time
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// QPS bounds outbound request rate; MusicBrainz documents a 1
	// request/second politeness limit for unauthenticated clients.
	QPS      rate.Limit
	CacheTTL time.Duration
	Log      logr.Logger

	// MaxResults caps how many recordings the search endpoint returns per
	// query (MusicBrainz's own &limit= parameter). Defaults to 10.
	MaxResults uint32

	// ConfidenceThreshold drops recordings whose search-relevance score
	// (0.0-1.0) falls below it. Zero means accept every result.
	ConfidenceThreshold float64
}

// Client searches MusicBrainz for recordings, memoizing results in-process
// and collapsing concurrent identical lookups with a singleflight group so
// a burst of scrobbles for the same track only costs one network call.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	group   singleflight.Group
	log     logr.Logger

	mu       sync.Mutex
	cache    map[string]cacheEntry
	cacheTTL time.Duration

	maxResults          uint32
	confidenceThreshold float64

	endpoint string // overridable by tests; defaults to searchEndpoint
}

// NewClient returns a Client configured with sensible politeness defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.QPS <= 0 {
		cfg.QPS = rate.Limit(1)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = 10
	}
	return &Client{
		http:                resty.New().SetHeader("User-Agent", userAgent).SetTimeout(10 * time.Second),
		limiter:             rate.NewLimiter(cfg.QPS, 1),
		log:                 cfg.Log,
		cache:               map[string]cacheEntry{},
		cacheTTL:            cfg.CacheTTL,
		maxResults:          cfg.MaxResults,
		confidenceThreshold: cfg.ConfidenceThreshold,
		endpoint:            searchEndpoint,
	}
}

// SearchParams narrows a recording search.
type SearchParams struct {
	Track  string
	Artist string
	Album  string
}

func (p SearchParams) cacheKey() string {
	return fmt.Sprintf("track=%s&artist=%s&album=%s", p.Track, p.Artist, p.Album)
}

func (p SearchParams) query() string {
	var parts []string
	if p.Track != "" {
		parts = append(parts, fmt.Sprintf(`recording:"%s"`, p.Track))
	}
	if p.Artist != "" {
		parts = append(parts, fmt.Sprintf(`artist:"%s"`, p.Artist))
	}
	if p.Album != "" {
		parts = append(parts, fmt.Sprintf(`release:"%s"`, p.Album))
	}
	return strings.Join(parts, " AND ")
}

// Search returns recordings matching params, serving from cache when fresh
// and deduping concurrent identical requests.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Recording, error) {
	if params.Track == "" {
		return nil, fmt.Errorf("musicbrainz search requires at least a track title")
	}
	key := params.cacheKey()

	if recs, ok := c.getCache(key); ok {
		return recs, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if recs, ok := c.getCache(key); ok {
			return recs, nil
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		endpoint := fmt.Sprintf("%s?query=%s&fmt=json&inc=artists+releases&limit=%d", c.endpoint, url.QueryEscape(params.query()), c.maxResults)
		resp, err := c.http.R().SetContext(ctx).Get(endpoint)
		if err != nil {
			return nil, fmt.Errorf("searching musicbrainz: %w", err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("musicbrainz search returned status %d", resp.StatusCode())
		}
		var parsed searchResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return nil, fmt.Errorf("decoding musicbrainz response: %w", err)
		}
		recs := c.filterByConfidence(parsed.Recordings)
		c.setCache(key, recs)
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Recording), nil
}

// filterByConfidence drops recordings scoring below c.confidenceThreshold,
// preserving MusicBrainz's own relevance ordering among the rest.
func (c *Client) filterByConfidence(recs []Recording) []Recording {
	if c.confidenceThreshold <= 0 {
		return recs
	}
	out := make([]Recording, 0, len(recs))
	for _, r := range recs {
		if r.Score.Float64() >= c.confidenceThreshold {
			out = append(out, r)
		}
	}
	return out
}

func (c *Client) getCache(key string) ([]Recording, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.recordings, true
}

func (c *Client) setCache(key string, recs []Recording) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{recordings: recs, expiresAt: time.Now().Add(c.cacheTTL)}
}

const japanCountryCode = "JP"

// sortReleasesCanonicalFirst orders releases with valid dates before
// undated ones, then ascending by date, then (if preferNonJapanese) a
// non-Japanese country before a Japanese one, then title, then ID, so
// index 0 is the earliest stable candidate.
func sortReleasesCanonicalFirst(releases []Release, preferNonJapanese bool) {
	sort.SliceStable(releases, func(i, j int) bool {
		a, b := releases[i], releases[j]
		validA, validB := len(a.Date) >= 4, len(b.Date) >= 4
		if validA != validB {
			return validA
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if preferNonJapanese {
			jpA, jpB := a.Country == japanCountryCode, b.Country == japanCountryCode
			if jpA != jpB {
				return !jpA
			}
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
}
