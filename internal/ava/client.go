// Package ava is the client for the conversational backend. REST calls
// handle authentication and session acquisition; each chat turn streams
// over a short-lived websocket.
package ava

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/jsamit27/ava/internal/config"
)

// EndMarker terminates a streamed reply.
const EndMarker = "<<END_OF_RESPONSE>>"

// Apology is the terminal reply when every send attempt yields nothing.
const Apology = "Sorry—no response from Ava."

const (
	restTimeout          = 15 * time.Second
	defaultStreamTimeout = 60 * time.Second
	sendAttempts         = 4
)

// Client holds one logical chat identity's connection to the backend.
// Authentication uses the shared service account; sessions and messages
// are keyed by UserID so each lead keeps their own conversation thread.
type Client struct {
	BaseURL       string
	PrismURL      string
	Username      string
	Password      string
	UserID        string
	StreamTimeout time.Duration

	// HTTPClient serves the REST calls. Websocket dials deliberately
	// use the default client: a client-level timeout would cut the
	// stream off mid-reply.
	HTTPClient *http.Client

	mu        sync.Mutex
	token     string
	sessionID string
}

// NewClient creates a backend client for one logical user.
func NewClient(cfg config.AvaConfig, userID string) *Client {
	timeout := cfg.StreamTimeout
	if timeout <= 0 {
		timeout = defaultStreamTimeout
	}
	return &Client{
		BaseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		PrismURL:      strings.TrimRight(cfg.PrismURL, "/"),
		Username:      cfg.Username,
		Password:      cfg.Password,
		UserID:        userID,
		StreamTimeout: timeout,
		HTTPClient:    &http.Client{Timeout: restTimeout},
	}
}

// Login authenticates the service account and caches the bearer token.
func (c *Client) Login(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	if c.Password == "" {
		return "", errors.New("login: no password configured")
	}

	body, err := json.Marshal(map[string]string{"username": c.Username, "password": c.Password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/user", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("login: status %d", resp.StatusCode)
	}
	var data struct {
		Authorization string `json:"authorization"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if data.Authorization == "" {
		return "", errors.New("login: empty authorization token")
	}

	c.mu.Lock()
	c.token = data.Authorization
	c.mu.Unlock()
	return data.Authorization, nil
}

// EnsureSession returns the backend session id, requesting one on first
// use and caching it. forceNew tears down the currently bound session
// before requesting a fresh one, so the backend never resurrects the
// old thread.
func (c *Client) EnsureSession(ctx context.Context, forceNew bool) (string, error) {
	c.mu.Lock()
	cached := c.sessionID
	c.mu.Unlock()
	if cached != "" && !forceNew {
		return cached, nil
	}

	token, err := c.Login(ctx)
	if err != nil {
		return "", err
	}

	if forceNew && cached != "" {
		c.closeSession(ctx, token, cached)
		c.mu.Lock()
		c.sessionID = ""
		c.mu.Unlock()
	}

	endpoint := fmt.Sprintf("%s/api/v1/prism/get_session/%s/ava", c.PrismURL, url.PathEscape(c.UserID))
	if forceNew {
		endpoint += "?new=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("get session: status %d", resp.StatusCode)
	}
	var data struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}

	// the id arrives as a number or a string depending on backend
	// version; both become the canonical string form
	id := strings.Trim(strings.TrimSpace(string(data.ID)), `"`)
	if id == "" || id == "null" {
		return "", errors.New("get session: no session id in response")
	}

	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
	return id, nil
}

// closeSession is a best-effort release of a backend session; a failure
// only means the backend keeps an orphaned thread around.
func (c *Client) closeSession(ctx context.Context, token, sessionID string) {
	endpoint := fmt.Sprintf("%s/api/v1/prism/get_session/%s/ava?session_id=%s",
		c.PrismURL, url.PathEscape(c.UserID), url.QueryEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		slog.Debug("Failed to close backend session", "session_id", sessionID, "error", err)
		return
	}
	_ = resp.Body.Close()
}

// Ask sends one prompt and returns the streamed reply text. It never
// returns an error: every failure mode collapses into "no text", which
// walks the escalation ladder before giving up with Apology.
//
//  1. send on the current session
//  2. resend once on the same session
//  3. tear the session down, bind a fresh one, resend
//  4. once more with a fresh session
func (c *Client) Ask(ctx context.Context, prompt string) string {
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		forceNew := attempt >= 3
		text, err := c.askOnce(ctx, prompt, forceNew)
		if err != nil {
			slog.Warn("Backend send failed", "attempt", attempt, "error", err)
			continue
		}
		if text != "" {
			return text
		}
		slog.Warn("Backend returned no text", "attempt", attempt)
	}
	return Apology
}

// askOnce performs one logical send: the minimal payload first, then
// the legacy shape some backend versions still require.
func (c *Client) askOnce(ctx context.Context, prompt string, forceNew bool) (string, error) {
	token, err := c.Login(ctx)
	if err != nil {
		return "", err
	}
	sessionID, err := c.EnsureSession(ctx, forceNew)
	if err != nil {
		return "", err
	}

	minimal := map[string]any{
		"user_id":    c.UserID,
		"session_id": sessionID,
		"message":    prompt,
	}
	text, rejected, err := c.stream(ctx, token, minimal)
	if err == nil && !rejected && text != "" {
		return text, nil
	}
	if err != nil {
		slog.Debug("Minimal payload failed, trying legacy payload", "error", err)
	}

	legacy := map[string]any{
		"action":     "create",
		"message":    prompt,
		"user_id":    c.UserID,
		"session_id": sessionID,
		"car": map[string]any{
			"vin":       "",
			"year":      -1,
			"make":      "",
			"model":     "",
			"trim":      "",
			"mileage":   -1,
			"condition": 0,
			"color":     "blue",
			"region":    "WC",
		},
	}
	text, _, err = c.stream(ctx, token, legacy)
	if err != nil {
		return "", err
	}
	return text, nil
}

// stream opens a websocket, writes one payload, and collects the reply
// frames. The bool reports an explicit backend rejection of the payload
// shape.
func (c *Client) stream(ctx context.Context, token string, payload any) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.StreamTimeout)
	defer cancel()

	endpoint := wsURL(c.BaseURL) + "/api/v1/stream?token=" + url.QueryEscape(token)
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{c.BaseURL}},
	})
	if err != nil {
		return "", false, fmt.Errorf("dial stream: %w", err)
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "turn complete")
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return "", false, err
	}
	if err := conn.Write(ctx, websocket.MessageText, body); err != nil {
		return "", false, fmt.Errorf("write stream: %w", err)
	}

	text, rejected := readStream(ctx, conn)
	return text, rejected, nil
}

// readStream collects frames until an error, an empty frame, an
// explicit rejection, or the end marker. Frames carrying a "text" key
// contribute to the reply, other parsed JSON is progress noise and is
// dropped, and unparseable frames count as raw text.
func readStream(ctx context.Context, conn *websocket.Conn) (string, bool) {
	var chunks []string
	rejected := false
	for {
		_, frame, err := conn.Read(ctx)
		if err != nil || len(frame) == 0 {
			break
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(string(frame))), "bad request") {
			rejected = true
			break
		}

		var obj any
		if err := json.Unmarshal(frame, &obj); err != nil {
			chunks = append(chunks, string(frame))
			continue
		}
		m, ok := obj.(map[string]any)
		if !ok {
			continue
		}
		if m["response"] == EndMarker {
			break
		}
		if text, ok := m["text"]; ok {
			chunks = append(chunks, frameText(text))
		}
	}
	return strings.TrimSpace(strings.Join(chunks, "")), rejected
}

func frameText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
