package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/mithril/pkg/client"
	"github.com/rubiojr/mithril/pkg/kv"
	"github.com/rubiojr/mithril/pkg/log"
	"github.com/rubiojr/mithril/pkg/session"
)

func newSearchBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"total":2,"time_ms":3.5,"results":[`+
			`{"id":"a","url":"https://go.dev/doc","title":"Go docs","snippet":"s"},`+
			`{"id":"b","url":"https://go.dev/blog","title":"Go blog","snippet":"s"}]}`)
	})
	mux.HandleFunc("GET /api/snippets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"a":"learn golang"}{"b":"golang news"}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log.SetOutput(&bytes.Buffer{})
	backend := newSearchBackend(t)
	c, err := client.New(backend.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	store := kv.NewMemoryStore(0)

	srv := NewServer(func() (*session.Session, error) {
		return session.New(c, store, session.Options{
			Controller: session.ControllerOptions{Debounce: 10 * time.Millisecond, SnippetDelay: time.Millisecond},
		}), nil
	})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(CorsMiddleware(mux))
	t.Cleanup(ts.Close)
	return ts
}

func wsDial(t *testing.T, ts *httptest.Server) (*websocket.Conn, map[string]any) {
	t.Helper()
	u, _ := url.Parse(ts.URL)
	u.Scheme = "ws"
	u.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read init: %v", err)
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal init: %v", err)
	}
	if msg["type"] != "init" {
		t.Fatalf("expected init message, got %v", msg["type"])
	}
	return conn, msg
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg["type"] == typ {
			return msg
		}
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Version == "" {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestWebSocketSearchFlow(t *testing.T) {
	ts := newTestServer(t)
	conn, init := wsDial(t, ts)
	if init["session_id"] == "" {
		t.Fatalf("init message without session id")
	}

	if err := conn.WriteJSON(ClientMessage{Type: MessageSearch, Q: "golang"}); err != nil {
		t.Fatal(err)
	}

	readUntil(t, conn, "loading-started")
	res := readUntil(t, conn, "results-ready")
	if res["session_id"] != init["session_id"] {
		t.Fatalf("event for another session: %v", res["session_id"])
	}
	groups, _ := res["groups"].([]any)
	if len(groups) != 1 {
		t.Fatalf("expected one host group, got %v", res["groups"])
	}

	snip := readUntil(t, conn, "snippet-ready")
	if snip["doc_id"] != "a" || snip["snippet"] != "learn <mark>golang</mark>" {
		t.Fatalf("unexpected snippet %v", snip)
	}
	done := readUntil(t, conn, "snippets-done")
	if done["count"] != float64(2) {
		t.Fatalf("expected 2 snippets, got %v", done["count"])
	}

	// The same query on the same connection is now a cache hit.
	if err := conn.WriteJSON(ClientMessage{Type: MessageSubmit, Q: "golang"}); err != nil {
		t.Fatal(err)
	}
	res = readUntil(t, conn, "results-ready")
	if res["from_cache"] != true {
		t.Fatalf("expected cached results, got %v", res)
	}
}

func TestWebSocketMath(t *testing.T) {
	ts := newTestServer(t)
	conn, _ := wsDial(t, ts)

	if err := conn.WriteJSON(ClientMessage{Type: MessageSubmit, Q: "6 * 7"}); err != nil {
		t.Fatal(err)
	}
	msg := readUntil(t, conn, "math-result")
	if msg["value"] != "42" {
		t.Fatalf("unexpected math value %v", msg["value"])
	}
}

func TestWebSocketSessionsAreIsolated(t *testing.T) {
	ts := newTestServer(t)
	_, first := wsDial(t, ts)
	_, second := wsDial(t, ts)
	if first["session_id"] == second["session_id"] {
		t.Fatalf("connections share a session id")
	}
}

func TestSessionFactoryError(t *testing.T) {
	log.SetOutput(&bytes.Buffer{})
	srv := NewServer(func() (*session.Session, error) {
		return nil, fmt.Errorf("store unavailable")
	})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
