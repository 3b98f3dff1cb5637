// Package sms delivers escalation messages through RingCentral. The
// client authenticates with a JWT grant and re-authenticates once when
// a request comes back with an expired or rejected token.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the RingCentral production platform.
	DefaultBaseURL = "https://platform.ringcentral.com"

	jwtGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	tokenPath       = "/restapi/oauth/token"
	phoneNumberPath = "/restapi/v1.0/account/~/extension/~/phone-number"
	smsPath         = "/restapi/v1.0/account/~/extension/~/sms"
)

// Client sends SMS through one RingCentral account. Safe for use from
// multiple goroutines.
type Client struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	JWT          string
	HTTPClient   *http.Client

	mu          sync.Mutex
	accessToken string
}

// New creates a Client. An empty baseURL selects the production
// platform.
func New(baseURL, clientID, clientSecret, jwt string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		JWT:          jwt,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

type phoneNumberList struct {
	Records []struct {
		PhoneNumber string   `json:"phoneNumber"`
		Features    []string `json:"features"`
	} `json:"records"`
}

type smsPayload struct {
	From smsParty   `json:"from"`
	To   []smsParty `json:"to"`
	Text string     `json:"text"`
}

type smsParty struct {
	PhoneNumber string `json:"phoneNumber"`
}

// Send delivers messageText to receiverNumber from the account's first
// SMS-capable number.
func (c *Client) Send(ctx context.Context, receiverNumber, messageText string) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	from, err := c.smsSenderNumber(ctx)
	if isAuthError(err) {
		if err = c.login(ctx); err != nil {
			return err
		}
		from, err = c.smsSenderNumber(ctx)
	}
	if err != nil {
		return err
	}
	if from == "" {
		return errors.New("no SMS-capable number found for this account")
	}

	payload := smsPayload{
		From: smsParty{PhoneNumber: from},
		To:   []smsParty{{PhoneNumber: receiverNumber}},
		Text: messageText,
	}
	err = c.post(ctx, smsPath, payload, nil)
	if isAuthError(err) {
		if err = c.login(ctx); err != nil {
			return err
		}
		err = c.post(ctx, smsPath, payload, nil)
	}
	return err
}

// smsSenderNumber returns the first number carrying the SmsSender
// feature, or empty when the account has none.
func (c *Client) smsSenderNumber(ctx context.Context) (string, error) {
	var list phoneNumberList
	if err := c.get(ctx, phoneNumberPath, &list); err != nil {
		return "", err
	}
	for _, rec := range list.Records {
		for _, f := range rec.Features {
			if f == "SmsSender" {
				return rec.PhoneNumber, nil
			}
		}
	}
	return "", nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	has := c.accessToken != ""
	c.mu.Unlock()
	if has {
		return nil
	}
	return c.login(ctx)
}

// login exchanges the configured JWT for an access token.
func (c *Client) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", jwtGrantType)
	form.Set("assertion", c.JWT)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+tokenPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authenticate: %w", &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(body))})
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if token.AccessToken == "" {
		return errors.New("authenticate: empty access token")
	}

	c.mu.Lock()
	c.accessToken = token.AccessToken
	c.mu.Unlock()
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if out != nil {
		return json.Unmarshal(body, out)
	}
	return nil
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("ringcentral: status %d: %s", e.status, e.body)
}

// isAuthError reports whether the failure looks like a stale or
// rejected token, in which case one re-login and retry is warranted.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	var ae *apiError
	if errors.As(err, &ae) && (ae.status == http.StatusUnauthorized || ae.status == http.StatusForbidden) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "token") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "expired")
}
