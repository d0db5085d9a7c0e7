package compilation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/provider"
)

func newTestClient(t *testing.T, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(ClientConfig{QPS: rate.Limit(1000), Log: logr.Discard()})
	c.endpoint = srv.URL
	return c
}

const fixtureResponse = `{
  "count": 1,
  "recordings": [
    {
      "id": "rec-1",
      "title": "Airbag",
      "releases": [
        {"id": "r1", "title": "OK Computer", "date": "1997-05-21", "status": "Official",
         "release-group": {"id": "rg1", "title": "OK Computer", "primary-type": "Album"}},
        {"id": "r2", "title": "Greatest Hits", "date": "2005", "status": "Official",
         "release-group": {"id": "rg2", "title": "Greatest Hits", "primary-type": "Album", "secondary-types": ["Compilation"]}}
      ]
    }
  ]
}`

func TestProviderAnalyzeProposesCanonicalAlbum(t *testing.T) {
	client := newTestClient(t, fixtureResponse)
	p := New(client, logr.Discard(), false)

	tracks := []lastfm.Track{{Name: "Airbag", Artist: "Radiohead", Album: "Greatest Hits"}}
	out, err := p.Analyze(context.Background(), tracks, provider.PendingState{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d suggestions; want 1", len(out))
	}
	edit := out[0].Suggestions[0].Suggestion.Edit
	if edit.AlbumName != "OK Computer" {
		t.Errorf("AlbumName = %q; want %q", edit.AlbumName, "OK Computer")
	}
	if !out[0].Suggestions[0].RequiresConfirmation {
		t.Error("compilation rewrites should require confirmation")
	}
}

func TestProviderAnalyzeSkipsNonCompilationAlbums(t *testing.T) {
	client := newTestClient(t, fixtureResponse)
	p := New(client, logr.Discard(), false)

	tracks := []lastfm.Track{{Name: "Airbag", Artist: "Radiohead", Album: "OK Computer"}}
	out, err := p.Analyze(context.Background(), tracks, provider.PendingState{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("a non-compilation album should produce no suggestion, got %+v", out)
	}
}

func TestProviderAnalyzeSkipsOnSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{QPS: rate.Limit(1000), Log: logr.Discard()})
	client.endpoint = srv.URL
	p := New(client, logr.Discard(), false)

	tracks := []lastfm.Track{{Name: "Airbag", Artist: "Radiohead", Album: "Greatest Hits"}}
	out, err := p.Analyze(context.Background(), tracks, provider.PendingState{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Error("a failed lookup should degrade to no suggestion, not an error")
	}
}

func TestClientSearchDedupsConcurrentLookups(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fixtureResponse))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{QPS: rate.Limit(1000), Log: logr.Discard()})
	c.endpoint = srv.URL

	done := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := c.Search(context.Background(), SearchParams{Track: "Airbag", Artist: "Radiohead"})
			if err != nil {
				t.Error(err)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	if calls != 1 {
		t.Errorf("got %d HTTP calls; want 1 (singleflight should collapse concurrent identical lookups)", calls)
	}
}
