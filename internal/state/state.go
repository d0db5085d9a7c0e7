// Package state implements the scrubber's durable state store: the anchor
// timestamp, active rule list, pending edits, and pending rules, all backed
// by a single JSON file written atomically (write-then-rename), plus the
// separately-persisted track cache (see cache.go).
//
// A single in-process mutex guards reads and writes; holders release it
// before any network I/O, and approve/reject operations hold it for the
// full read-modify-write so the store is never observable half-applied.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/rewrite"
)

// ErrNotFound is returned by Approve/Reject operations when the referenced
// pending ID no longer exists. It is never fatal.
var ErrNotFound = errors.New("state: not found")

// ErrCorrupt wraps an unreadable or malformed state file. It is fatal for
// the process; callers must not attempt auto-repair.
type ErrCorrupt struct {
	Path string
	Err  error
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("state file %s is corrupt: %v", e.Path, e.Err)
}
func (e *ErrCorrupt) Unwrap() error { return e.Err }

// PendingEdit is a proposed ScrobbleEdit awaiting human approval.
type PendingEdit struct {
	ID        string
	Edit      lastfm.ScrobbleEdit
	CreatedAt int64 // unix seconds
}

// PendingRewriteRule is a proposed new RewriteRule awaiting approval.
type PendingRewriteRule struct {
	ID                     string
	Rule                   rewrite.RewriteRule
	Reason                 string
	ExampleTrackName       string
	ExampleArtistName      string
	ExampleAlbumName       string
	ExampleAlbumArtistName string
	CreatedAt              int64
}

// document is the on-disk shape of state.db.
type document struct {
	AnchorTimestamp *int64                `json:"anchor_timestamp,omitempty"`
	RewriteRules    []rewrite.RewriteRule `json:"rewrite_rules"`
	PendingEdits    []PendingEdit         `json:"pending_edits"`
	PendingRules    []PendingRewriteRule  `json:"pending_rules"`
}

// Store is the durable state store.
type Store struct {
	path string
	mu   sync.Mutex
	doc  document
}

// Open loads (or initializes) the state store backed by path.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = document{RewriteRules: rewrite.DefaultRules()}
		return s, nil
	}
	if err != nil {
		return nil, &ErrCorrupt{Path: path, Err: err}
	}
	if len(b) == 0 {
		s.doc = document{RewriteRules: rewrite.DefaultRules()}
		return s, nil
	}
	if err := json.Unmarshal(b, &s.doc); err != nil {
		return nil, &ErrCorrupt{Path: path, Err: err}
	}
	return s, nil
}

// save writes the document atomically: write to a temp file in the same
// directory, then rename over the target. Caller must hold s.mu.
func (s *Store) save() error {
	b, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp state file: %w", err)
	}
	return nil
}

// LoadAnchor returns the persisted anchor, or nil if unset.
func (s *Store) LoadAnchor() *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.AnchorTimestamp == nil {
		return nil
	}
	v := *s.doc.AnchorTimestamp
	return &v
}

// SaveAnchor persists the anchor timestamp.
func (s *Store) SaveAnchor(ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.AnchorTimestamp = &ts
	return s.save()
}

// LoadRules returns a copy of the active rule list.
func (s *Store) LoadRules() []rewrite.RewriteRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rewrite.RewriteRule, len(s.doc.RewriteRules))
	copy(out, s.doc.RewriteRules)
	return out
}

// SaveRules persists the active rule list wholesale.
func (s *Store) SaveRules(rules []rewrite.RewriteRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.RewriteRules = rules
	return s.save()
}

// LoadPendingEdits returns a copy of the pending-edit list.
func (s *Store) LoadPendingEdits() []PendingEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingEdit, len(s.doc.PendingEdits))
	copy(out, s.doc.PendingEdits)
	return out
}

// AddPendingEdit appends a new pending edit with a fresh unique ID, unless a
// byte-identical pending edit already exists, in which case it is a no-op
// and the existing ID is returned.
func (s *Store) AddPendingEdit(edit lastfm.ScrobbleEdit, createdAt int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pe := range s.doc.PendingEdits {
		if pe.Edit == edit {
			return pe.ID, nil
		}
	}
	id := uuid.NewString()
	s.doc.PendingEdits = append(s.doc.PendingEdits, PendingEdit{ID: id, Edit: edit, CreatedAt: createdAt})
	if err := s.save(); err != nil {
		return "", err
	}
	return id, nil
}

// ApprovePendingEdit removes the pending edit with id and returns it so the
// caller can apply it. Returns ErrNotFound if id doesn't exist.
func (s *Store) ApprovePendingEdit(id string) (PendingEdit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, pe := range s.doc.PendingEdits {
		if pe.ID == id {
			s.doc.PendingEdits = append(s.doc.PendingEdits[:i:i], s.doc.PendingEdits[i+1:]...)
			if err := s.save(); err != nil {
				return PendingEdit{}, err
			}
			return pe, nil
		}
	}
	return PendingEdit{}, ErrNotFound
}

// RejectPendingEdit removes the pending edit with id without returning it.
// Returns ErrNotFound if id doesn't exist.
func (s *Store) RejectPendingEdit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, pe := range s.doc.PendingEdits {
		if pe.ID == id {
			s.doc.PendingEdits = append(s.doc.PendingEdits[:i:i], s.doc.PendingEdits[i+1:]...)
			return s.save()
		}
	}
	return ErrNotFound
}

// LoadPendingRules returns a copy of the pending-rule list.
func (s *Store) LoadPendingRules() []PendingRewriteRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingRewriteRule, len(s.doc.PendingRules))
	copy(out, s.doc.PendingRules)
	return out
}

// AddPendingRule appends a new pending rule, deduping on (rule body, example
// track name).
func (s *Store) AddPendingRule(pr PendingRewriteRule) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.doc.PendingRules {
		if sameRuleBody(existing.Rule, pr.Rule) && existing.ExampleTrackName == pr.ExampleTrackName {
			return existing.ID, nil
		}
	}
	pr.ID = uuid.NewString()
	s.doc.PendingRules = append(s.doc.PendingRules, pr)
	if err := s.save(); err != nil {
		return "", err
	}
	return pr.ID, nil
}

// ApprovePendingRule atomically moves the pending rule with id into the
// active rule list and removes it from the pending list. Returns
// ErrNotFound if id doesn't exist.
func (s *Store) ApprovePendingRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, pr := range s.doc.PendingRules {
		if pr.ID == id {
			s.doc.PendingRules = append(s.doc.PendingRules[:i:i], s.doc.PendingRules[i+1:]...)
			s.doc.RewriteRules = append(s.doc.RewriteRules, pr.Rule)
			return s.save()
		}
	}
	return ErrNotFound
}

// RejectPendingRule removes the pending rule with id. Returns ErrNotFound if
// id doesn't exist.
func (s *Store) RejectPendingRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, pr := range s.doc.PendingRules {
		if pr.ID == id {
			s.doc.PendingRules = append(s.doc.PendingRules[:i:i], s.doc.PendingRules[i+1:]...)
			return s.save()
		}
	}
	return ErrNotFound
}

func sameRuleBody(a, b rewrite.RewriteRule) bool {
	eq := func(x, y *rewrite.SdRule) bool {
		if x == nil || y == nil {
			return x == y
		}
		return *x == *y
	}
	return a.Name == b.Name &&
		eq(a.TrackName, b.TrackName) &&
		eq(a.ArtistName, b.ArtistName) &&
		eq(a.AlbumName, b.AlbumName) &&
		eq(a.AlbumArtistName, b.AlbumArtistName) &&
		a.RequiresConfirmation == b.RequiresConfirmation
}
