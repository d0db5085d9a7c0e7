package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/rewrite"
)

func TestOpenMissingFileSeedsDefaultRules(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.LoadRules()) != len(rewrite.DefaultRules()) {
		t.Errorf("got %d default rules; want %d", len(s.LoadRules()), len(rewrite.DefaultRules()))
	}
	if s.LoadAnchor() != nil {
		t.Error("anchor should be unset on a fresh store")
	}
}

func TestSaveAnchorPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAnchor(1690000000); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	got := s2.LoadAnchor()
	if got == nil || *got != 1690000000 {
		t.Errorf("LoadAnchor() = %v; want 1690000000", got)
	}
}

func TestAddPendingEditDedupsIdentical(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatal(err)
	}

	edit := lastfm.ScrobbleEdit{TrackNameOriginal: "Foo", TrackName: "Bar", Timestamp: 100}
	id1, err := s.AddPendingEdit(edit, 1)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.AddPendingEdit(edit, 2)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("duplicate pending edit got a new ID: %s != %s", id1, id2)
	}
	if len(s.LoadPendingEdits()) != 1 {
		t.Errorf("got %d pending edits; want 1", len(s.LoadPendingEdits()))
	}
}

func TestApprovePendingEditRemovesAndReturns(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatal(err)
	}

	edit := lastfm.ScrobbleEdit{TrackNameOriginal: "Foo", TrackName: "Bar"}
	id, err := s.AddPendingEdit(edit, 1)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.ApprovePendingEdit(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Edit != edit {
		t.Errorf("ApprovePendingEdit returned %+v; want %+v", got.Edit, edit)
	}
	if len(s.LoadPendingEdits()) != 0 {
		t.Error("approved edit should be removed from pending list")
	}

	if _, err := s.ApprovePendingEdit(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("re-approving should return ErrNotFound, got %v", err)
	}
}

func TestRejectPendingEditNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RejectPendingEdit("nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v; want ErrNotFound", err)
	}
}

func TestApprovePendingRuleMovesToActiveRules(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	before := len(s.LoadRules())

	rule := rewrite.RewriteRule{
		Name:       "strip bracketed year",
		TrackName:  &rewrite.SdRule{Find: `^(.*) \(\d{4}\)$`, Replace: "$1"},
	}
	id, err := s.AddPendingRule(PendingRewriteRule{Rule: rule, ExampleTrackName: "Song (1999)"})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.ApprovePendingRule(id); err != nil {
		t.Fatal(err)
	}
	if len(s.LoadRules()) != before+1 {
		t.Errorf("got %d active rules; want %d", len(s.LoadRules()), before+1)
	}
	if len(s.LoadPendingRules()) != 0 {
		t.Error("approved rule should leave the pending list")
	}
}

func TestAddPendingRuleDedupsOnBodyAndExample(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatal(err)
	}

	rule := rewrite.RewriteRule{TrackName: &rewrite.SdRule{Find: "a", Replace: "b"}}
	id1, err := s.AddPendingRule(PendingRewriteRule{Rule: rule, ExampleTrackName: "ax"})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.AddPendingRule(PendingRewriteRule{Rule: rule, ExampleTrackName: "ax"})
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Error("identical proposed rule + example should dedup to the same ID")
	}
}

func TestOpenCorruptFileReturnsErrCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	var ce *ErrCorrupt
	if !errors.As(err, &ce) {
		t.Errorf("got %v; want *ErrCorrupt", err)
	}
}
