package session

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rubiojr/mithril/pkg/client"
	"github.com/rubiojr/mithril/pkg/kv"
	"github.com/rubiojr/mithril/pkg/log"
	"github.com/rubiojr/mithril/pkg/realtime"
)

func newSearchAPI(t *testing.T, searches *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/search", func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"total":1,"time_ms":1.0,"fallback":true,"results":[{"id":"d1","url":"https://a.com/x","title":"%s","snippet":"plain"}]}`, r.URL.Query().Get("q"))
	})
	mux.HandleFunc("GET /api/snippets", func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		fmt.Fprint(w, `{"d1":"a golang snippet"}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func runSession(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func nextEvent(t *testing.T, ch <-chan realtime.Event, typ string) realtime.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("subscription closed while waiting for %s", typ)
			}
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestSessionEndToEnd(t *testing.T) {
	log.SetOutput(&bytes.Buffer{})
	var searches atomic.Int32
	ts := newSearchAPI(t, &searches)

	api, err := client.New(ts.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	store, err := kv.NewFileStore(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	opts := Options{Controller: ControllerOptions{Debounce: 10 * time.Millisecond, SnippetDelay: time.Millisecond}}
	s := New(api, store, opts)
	_, events := s.Subscribe()
	runSession(t, s)

	s.Submit("golang")
	ev := nextEvent(t, events, realtime.TypeResultsReady)
	if ev.SessionID != s.ID || ev.SessionID == "" {
		t.Fatalf("event should carry the session id, got %q", ev.SessionID)
	}
	if !ev.Results.Fallback || ev.FromCache {
		t.Fatalf("unexpected results event %+v", ev)
	}
	snip := nextEvent(t, events, realtime.TypeSnippetReady)
	if snip.DocID != "d1" || snip.Snippet != "a <mark>golang</mark> snippet" {
		t.Fatalf("unexpected snippet event %+v", snip)
	}
	nextEvent(t, events, realtime.TypeSnippetsDone)

	// A new session on the same store restores the snapshot and serves the
	// query without a network round trip.
	s2 := New(api, store, opts)
	_, events2 := s2.Subscribe()
	runSession(t, s2)
	s2.SubmitNow("golang")
	ev = nextEvent(t, events2, realtime.TypeResultsReady)
	if !ev.FromCache {
		t.Fatalf("restored session should hit the cache")
	}
	if n := searches.Load(); n != 1 {
		t.Fatalf("expected one network search, got %d", n)
	}
	if s2.ID == s.ID {
		t.Fatalf("sessions should have distinct ids")
	}
}

func TestSessionMathCanBeDisabled(t *testing.T) {
	log.SetOutput(&bytes.Buffer{})
	var searches atomic.Int32
	ts := newSearchAPI(t, &searches)
	api, _ := client.New(ts.URL, time.Second)

	s := New(api, nil, Options{DisableMath: true})
	_, events := s.Subscribe()
	runSession(t, s)

	s.SubmitNow("1 + 1")
	if ev := nextEvent(t, events, realtime.TypeResultsReady); ev.Query != "1 + 1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if searches.Load() != 1 {
		t.Fatalf("with math disabled the query goes to the search API")
	}
}

func TestSessionRunClosesSubscriptions(t *testing.T) {
	log.SetOutput(&bytes.Buffer{})
	s := New(newFakeSearcher(), nil, Options{})
	_, events := s.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	select {
	case _, ok := <-events:
		if ok {
			t.Fatalf("expected closed subscription")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription not closed after Run returned")
	}
}
