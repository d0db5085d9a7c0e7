package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	apiBaseURL   = "https://ws.audioscrobbler.com/2.0/"
	webBaseURL   = "https://www.last.fm"
	userAgent    = "scrobble-scrubber/0 (+https://github.com/kbuilds/scrobble-scrubber)"
	loginPath    = "/login"
	editPath     = "/user/%s/library/edit"
	recentMethod = "user.getrecenttracks"
	artistMethod = "user.getartisttracks"
)

// csrfTokenRegexp extracts the hidden CSRF token Last.fm's edit forms embed,
// the same brittle-regexp-over-hidden-input approach MusicBrainz's login
// form requires.
var csrfTokenRegexp = regexp.MustCompile(`name="csrfmiddlewaretoken"\s+value="([^"]+)"`)

// RateLimitKind distinguishes a rate limit scoped to a single request from
// one that suspends the whole account, since the two warrant different
// backoff treatment.
type RateLimitKind int

const (
	RateLimitUnknown RateLimitKind = iota
	// RateLimitGlobal is returned by account-wide read endpoints (fetching
	// scrobble history); a 429 here suggests the whole account is
	// throttled, not just one request.
	RateLimitGlobal
	// RateLimitPerTrack is returned by the single-scrobble edit endpoint;
	// a 429 here is scoped to that one edit request.
	RateLimitPerTrack
)

// RateLimitedError indicates the remote service returned a rate-limit
// response. The scrubber loop backs off and retries rather than treating it
// as a hard failure.
type RateLimitedError struct {
	RetryAfter time.Duration
	Kind       RateLimitKind
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// AuthExpiredError indicates the session cookie is no longer valid. It is
// fatal: the process needs fresh credentials, not a retry.
type AuthExpiredError struct{ Username string }

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("session for %s has expired or was rejected", e.Username)
}

// Client talks to Last.fm: the public JSON API for reads, and the
// unofficial session-authenticated web forms for scrobble edits. It mirrors
// the login-then-rate-limited-request shape of a MusicBrainz bot editor,
// generalized to Last.fm's endpoints.
type Client struct {
	http     *resty.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	log      logr.Logger
	apiKey   string
	username string
	dryRun   bool

	loggedIn bool
}

// Config configures a new Client.
type Config struct {
	APIKey   string
	Username string
	Password string
	DryRun   bool
	// QPS bounds outbound request rate against both the JSON API and the
	// edit forms; Last.fm publishes no formal limit, so this defaults
	// conservatively.
	QPS rate.Limit
	Log logr.Logger
}

// NewClient builds a Client. It does not log in; call Login before issuing
// edits.
func NewClient(cfg Config) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if cfg.QPS <= 0 {
		cfg.QPS = rate.Limit(2)
	}
	h := resty.New().
		SetCookieJar(jar).
		SetHeader("User-Agent", userAgent).
		SetTimeout(30 * time.Second)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "lastfm",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		http:     h,
		limiter:  rate.NewLimiter(cfg.QPS, 1),
		breaker:  breaker,
		log:      cfg.Log,
		apiKey:   cfg.APIKey,
		username: cfg.Username,
		dryRun:   cfg.DryRun,
	}, nil
}

// Login authenticates against Last.fm's session-based login form so
// subsequent edit requests carry a valid session cookie and CSRF token.
func (c *Client) Login(ctx context.Context, password string) error {
	if c.dryRun {
		c.loggedIn = true
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().SetContext(ctx).Get(webBaseURL + loginPath)
	if err != nil {
		return fmt.Errorf("fetching login page: %w", err)
	}
	ms := csrfTokenRegexp.FindStringSubmatch(resp.String())
	if ms == nil {
		return fmt.Errorf("login page missing csrf token")
	}
	csrfToken := ms[1]

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err = c.http.R().SetContext(ctx).
		SetHeader("Referer", webBaseURL+loginPath).
		SetFormData(map[string]string{
			"csrfmiddlewaretoken": csrfToken,
			"username_or_email":   c.username,
			"password":            password,
		}).
		Post(webBaseURL + loginPath)
	if err != nil {
		return fmt.Errorf("posting login form: %w", err)
	}
	if strings.Contains(resp.String(), "Invalid username/email address or password") {
		return &AuthExpiredError{Username: c.username}
	}
	c.loggedIn = true
	return nil
}

// Cookies returns the session cookies the client is currently holding for
// Last.fm's web host, for a session manager to persist across restarts.
func (c *Client) Cookies() []*http.Cookie {
	u, err := url.Parse(webBaseURL)
	if err != nil {
		return nil
	}
	return c.http.GetClient().Jar.Cookies(u)
}

// RestoreCookies seeds the client's cookie jar from previously persisted
// cookies and marks the client logged in without re-posting the login
// form. The caller is responsible for verifying the session is still
// valid (the first authenticated request will return AuthExpiredError if
// not).
func (c *Client) RestoreCookies(cookies []*http.Cookie) {
	u, err := url.Parse(webBaseURL)
	if err != nil || len(cookies) == 0 {
		return
	}
	c.http.GetClient().Jar.SetCookies(u, cookies)
	c.loggedIn = true
}

// recentTracksResponse mirrors the shape of Last.fm's user.getrecenttracks
// JSON response.
type recentTracksResponse struct {
	RecentTracks struct {
		Track []apiTrack `json:"track"`
	} `json:"recenttracks"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

type apiTrack struct {
	Name   string `json:"name"`
	Artist struct {
		Text string `json:"#text"`
	} `json:"artist"`
	Album struct {
		Text string `json:"#text"`
	} `json:"album"`
	Date struct {
		UTS string `json:"uts"`
	} `json:"date"`
	Attr struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

func (t apiTrack) toTrack() Track {
	out := Track{Name: t.Name, Artist: t.Artist.Text, Album: t.Album.Text}
	if t.Attr.NowPlaying == "true" || t.Date.UTS == "" {
		return out
	}
	if ts, err := strconv.ParseInt(t.Date.UTS, 10, 64); err == nil {
		out.Timestamp = ts
		out.HasTimestamp = true
	}
	return out
}

// FetchRecentTracks returns up to limit of the user's most recent scrobbles,
// newest first, as reported by the public JSON API.
func (c *Client) FetchRecentTracks(ctx context.Context, limit int) ([]Track, error) {
	return c.fetchTracks(ctx, recentMethod, limit, nil)
}

// FetchArtistTracks returns up to limit scrobbles of artist, newest first.
func (c *Client) FetchArtistTracks(ctx context.Context, artist string, limit int) ([]Track, error) {
	return c.fetchTracks(ctx, artistMethod, limit, map[string]string{"artist": artist})
}

func (c *Client) fetchTracks(ctx context.Context, method string, limit int, extra map[string]string) ([]Track, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req := c.http.R().SetContext(ctx).SetQueryParams(map[string]string{
		"method":  method,
		"user":    c.username,
		"api_key": c.apiKey,
		"format":  "json",
		"limit":   strconv.Itoa(limit),
	})
	for k, v := range extra {
		req.SetQueryParam(k, v)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := req.Get(apiBaseURL)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", method, err)
		}
		if resp.StatusCode() == 429 {
			return nil, &RateLimitedError{RetryAfter: 30 * time.Second, Kind: RateLimitGlobal}
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("%s returned status %d", method, resp.StatusCode())
		}
		var parsed recentTracksResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return nil, fmt.Errorf("decoding %s response: %w", method, err)
		}
		if parsed.Error != 0 {
			return nil, fmt.Errorf("%s error %d: %s", method, parsed.Error, parsed.Message)
		}
		tracks := make([]Track, 0, len(parsed.RecentTracks.Track))
		for _, t := range parsed.RecentTracks.Track {
			tracks = append(tracks, t.toTrack())
		}
		return tracks, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Track), nil
}

// ApplyEdit submits edit through Last.fm's unofficial library-edit form.
// Login must have succeeded first. dryRun clients log the form body instead
// of sending it.
func (c *Client) ApplyEdit(ctx context.Context, edit ScrobbleEdit) error {
	if !c.loggedIn {
		return fmt.Errorf("ApplyEdit called before Login")
	}
	form := map[string]string{
		"track_name":       edit.TrackNameOriginal,
		"artist_name":      edit.ArtistNameOriginal,
		"album_name":       edit.AlbumNameOriginal,
		"timestamp":        strconv.FormatInt(edit.Timestamp, 10),
		"new_track_name":   edit.TrackName,
		"new_artist_name":  edit.ArtistName,
		"new_album_name":   edit.AlbumName,
		"new_album_artist": edit.AlbumArtistName,
	}
	if edit.EditAll {
		form["edit_all"] = "1"
	}

	path := fmt.Sprintf(editPath, c.username)
	if c.dryRun {
		c.log.Info("dry run: would submit scrobble edit", "path", path, "form", form)
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().SetContext(ctx).
			SetHeader("Referer", webBaseURL+path).
			SetFormData(form).
			Post(webBaseURL + path)
		if err != nil {
			return nil, fmt.Errorf("submitting edit: %w", err)
		}
		switch resp.StatusCode() {
		case 429:
			return nil, &RateLimitedError{RetryAfter: 30 * time.Second, Kind: RateLimitPerTrack}
		case 403:
			return nil, &AuthExpiredError{Username: c.username}
		}
		if resp.StatusCode() >= 400 {
			return nil, fmt.Errorf("edit form returned status %d", resp.StatusCode())
		}
		return nil, nil
	})
	return err
}
