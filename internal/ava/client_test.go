package ava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/jsamit27/ava/internal/config"
)

// fakeAva is an in-process stand-in for the conversational backend. Its
// stream behavior is programmable per dial so the retry escalation can
// be driven through every stage.
type fakeAva struct {
	// frames decides what the stream sends back for the nth dial.
	frames func(dial int, payload map[string]any) []string

	mu       sync.Mutex
	logins   int
	sessions int
	forced   []bool
	closed   []string
	payloads []map[string]any
}

func (f *fakeAva) server(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()

	r.Post("/api/v1/user", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"authorization": "test-token"}`)
	})

	r.Get("/api/v1/prism/get_session/{user}/ava", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.sessions++
		f.forced = append(f.forced, req.URL.Query().Get("new") == "true")
		id := fmt.Sprintf("sess-%d", f.sessions)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id": %q}`, id)
	})

	r.Delete("/api/v1/prism/get_session/{user}/ava", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.closed = append(f.closed, req.URL.Query().Get("session_id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/api/v1/stream", func(w http.ResponseWriter, req *http.Request) {
		conn, err := websocket.Accept(w, req, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow() //nolint:errcheck

		ctx := req.Context()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}

		f.mu.Lock()
		f.payloads = append(f.payloads, payload)
		dial := len(f.payloads)
		f.mu.Unlock()

		for _, frame := range f.frames(dial, payload) {
			if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
				return
			}
		}
		_ = conn.Close(websocket.StatusNormalClosure, "")
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeAva) client(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(config.AvaConfig{
		BaseURL:       srv.URL,
		PrismURL:      srv.URL,
		Username:      "amit",
		Password:      "pw",
		StreamTimeout: 5 * time.Second,
	}, "3")
}

func endFrame() string {
	return fmt.Sprintf(`{"response": %q}`, EndMarker)
}

func TestAskStreamsReplyChunks(t *testing.T) {
	f := &fakeAva{frames: func(dial int, payload map[string]any) []string {
		return []string{`{"text": "Hel"}`, `{"text": "lo"}`, endFrame()}
	}}
	c := f.client(t, f.server(t))

	if got := c.Ask(context.Background(), "hi"); got != "Hello" {
		t.Errorf("Expected Hello, got %q", got)
	}
	if f.logins != 1 {
		t.Errorf("Expected one login, got %d", f.logins)
	}
	if len(f.payloads) != 1 {
		t.Errorf("Expected one stream dial, got %d", len(f.payloads))
	}
}

func TestAskFallsBackToLegacyShape(t *testing.T) {
	f := &fakeAva{frames: func(dial int, payload map[string]any) []string {
		if _, legacy := payload["action"]; !legacy {
			return []string{"bad request: missing action"}
		}
		return []string{`{"text": "ok"}`, endFrame()}
	}}
	c := f.client(t, f.server(t))

	if got := c.Ask(context.Background(), "hi"); got != "ok" {
		t.Errorf("Expected ok, got %q", got)
	}
	if len(f.payloads) != 2 {
		t.Fatalf("Expected minimal then legacy dials, got %d", len(f.payloads))
	}
	if _, found := f.payloads[0]["action"]; found {
		t.Error("Expected first payload to be the minimal shape")
	}
	legacy := f.payloads[1]
	if legacy["action"] != "create" {
		t.Errorf("Expected legacy action create, got %v", legacy["action"])
	}
	car, ok := legacy["car"].(map[string]any)
	if !ok || car["color"] != "blue" || car["region"] != "WC" {
		t.Errorf("Expected legacy dummy car, got %v", legacy["car"])
	}
}

func TestAskRecreatesSessionAfterSilence(t *testing.T) {
	// attempts 1-2 run two shapes each over sess-1 and stay silent;
	// attempt 3 tears the session down and succeeds on a fresh one
	f := &fakeAva{frames: func(dial int, payload map[string]any) []string {
		if dial < 5 {
			return []string{endFrame()}
		}
		return []string{`{"text": "back online"}`, endFrame()}
	}}
	c := f.client(t, f.server(t))

	if got := c.Ask(context.Background(), "hi"); got != "back online" {
		t.Errorf("Expected recovery text, got %q", got)
	}
	if f.sessions != 2 {
		t.Errorf("Expected a second session to be minted, got %d", f.sessions)
	}
	if len(f.closed) != 1 || f.closed[0] != "sess-1" {
		t.Errorf("Expected sess-1 to be closed before recreation, got %v", f.closed)
	}
	if len(f.forced) != 2 || f.forced[0] || !f.forced[1] {
		t.Errorf("Expected lazy first bind then forced rebind, got %v", f.forced)
	}
	if f.payloads[4]["session_id"] != "sess-2" {
		t.Errorf("Expected fifth dial on the fresh session, got %v", f.payloads[4]["session_id"])
	}
}

func TestAskGivesUpWithApology(t *testing.T) {
	f := &fakeAva{frames: func(dial int, payload map[string]any) []string {
		return []string{endFrame()}
	}}
	c := f.client(t, f.server(t))

	if got := c.Ask(context.Background(), "hi"); got != Apology {
		t.Errorf("Expected apology, got %q", got)
	}
	// 4 attempts x 2 wire shapes
	if len(f.payloads) != 8 {
		t.Errorf("Expected 8 dials, got %d", len(f.payloads))
	}
	// lazy bind plus two forced recreations
	if f.sessions != 3 {
		t.Errorf("Expected 3 sessions minted, got %d", f.sessions)
	}
	if len(f.closed) != 2 {
		t.Errorf("Expected 2 session closes, got %d", len(f.closed))
	}
}

func TestAskCachesAuthAndSession(t *testing.T) {
	f := &fakeAva{frames: func(dial int, payload map[string]any) []string {
		return []string{`{"text": "hi"}`, endFrame()}
	}}
	c := f.client(t, f.server(t))

	c.Ask(context.Background(), "one")
	c.Ask(context.Background(), "two")

	if f.logins != 1 {
		t.Errorf("Expected cached token after first login, got %d logins", f.logins)
	}
	if f.sessions != 1 {
		t.Errorf("Expected cached session, got %d mints", f.sessions)
	}
}

func TestAskIgnoresProgressNoiseFrames(t *testing.T) {
	f := &fakeAva{frames: func(dial int, payload map[string]any) []string {
		return []string{
			`{"status": "thinking"}`,
			`{"text": "All set."}`,
			endFrame(),
			`{"text": "after the end"}`,
		}
	}}
	c := f.client(t, f.server(t))

	if got := c.Ask(context.Background(), "hi"); got != "All set." {
		t.Errorf("Expected text frames only, got %q", got)
	}
}

func TestWsURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://ava.example.com", "wss://ava.example.com"},
		{"http://127.0.0.1:8080", "ws://127.0.0.1:8080"},
		{"wss://already.example.com", "wss://already.example.com"},
	}
	for _, tt := range tests {
		if got := wsURL(tt.in); got != tt.want {
			t.Errorf("wsURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadStreamDetectsBadRequest(t *testing.T) {
	f := &fakeAva{frames: func(dial int, payload map[string]any) []string {
		if dial == 1 {
			return []string{"Bad Request: malformed payload"}
		}
		return []string{`{"text": "recovered"}`, endFrame()}
	}}
	c := f.client(t, f.server(t))

	if got := c.Ask(context.Background(), "hi"); got != "recovered" {
		t.Errorf("Expected legacy retry after rejection, got %q", got)
	}
	if !strings.HasPrefix(fmt.Sprint(f.payloads[1]["action"]), "create") {
		t.Errorf("Expected legacy shape after rejection, got %v", f.payloads[1])
	}
}
