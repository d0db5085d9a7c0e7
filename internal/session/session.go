// Package session persists a logged-in Last.fm client's cookies to disk so
// the scrubber doesn't have to replay the login form on every restart, and
// remembers the most recently used username so the CLI can omit it on
// subsequent runs.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
)

// savedSession is the on-disk shape of a persisted session.
type savedSession struct {
	Username string         `json:"username"`
	Cookies  []*http.Cookie `json:"cookies"`
	SavedAt  time.Time      `json:"saved_at"`
}

// Manager persists sessions under a directory, one file per username, plus
// a pointer file recording the most recently used username.
type Manager struct {
	dir string
}

// NewManager returns a Manager that stores session files under dir,
// creating it if necessary.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

func (m *Manager) sessionPath(username string) string {
	return filepath.Join(m.dir, username+".json")
}

func (m *Manager) recentPath() string {
	return filepath.Join(m.dir, "recent_user")
}

// CreateAndSave logs in a fresh client for username/password and persists
// its session cookies, so subsequent runs can skip the login form.
func (m *Manager) CreateAndSave(ctx context.Context, cfg lastfm.Config) (*lastfm.Client, error) {
	client, err := lastfm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.Login(ctx, cfg.Password); err != nil {
		return nil, err
	}
	if err := m.save(cfg.Username, client.Cookies()); err != nil {
		return nil, err
	}
	if err := m.setRecentUsername(cfg.Username); err != nil {
		return nil, err
	}
	return client, nil
}

// TryRestore rebuilds a client from a previously saved session for
// username, without re-posting the login form. The caller should attempt
// an authenticated request and be ready to fall back to CreateAndSave if it
// fails with AuthExpiredError. Returns (nil, nil) if no saved session
// exists.
func (m *Manager) TryRestore(cfg lastfm.Config) (*lastfm.Client, error) {
	b, err := os.ReadFile(m.sessionPath(cfg.Username))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading saved session: %w", err)
	}
	var saved savedSession
	if err := json.Unmarshal(b, &saved); err != nil {
		return nil, fmt.Errorf("decoding saved session: %w", err)
	}

	client, err := lastfm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	client.RestoreCookies(saved.Cookies)
	return client, nil
}

// RecentUsername returns the most recently saved username, or "" if none.
func (m *Manager) RecentUsername() string {
	b, err := os.ReadFile(m.recentPath())
	if err != nil {
		return ""
	}
	return string(b)
}

func (m *Manager) setRecentUsername(username string) error {
	return atomicWrite(m.recentPath(), []byte(username))
}

func (m *Manager) save(username string, cookies []*http.Cookie) error {
	saved := savedSession{Username: username, Cookies: cookies, SavedAt: time.Now()}
	b, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	return atomicWrite(m.sessionPath(username), b)
}

// atomicWrite writes b to path via a temp-file-then-rename, matching the
// state store's durability guarantee for the same reason: a crash mid-write
// must never leave a half-written session or pointer file.
func atomicWrite(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
