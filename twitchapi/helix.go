package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultHelixURL is the Helix API base.
const DefaultHelixURL = "https://api.twitch.tv/helix"

// ErrUserNotFound is returned when no Twitch user has the login.
var ErrUserNotFound = errors.New("user not found")

// User is the subset of a Helix user the bot uses.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// HelixClient calls Helix. Tokens supplies the app access token used for
// lookups.
type HelixClient struct {
	ClientID   string
	Tokens     oauth2.TokenSource
	BaseURL    string
	HTTPClient *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return strings.TrimRight(hc.BaseURL, "/")
	}
	return DefaultHelixURL
}

// do sends one request with the token from ts and decodes a JSON response
// into out when out is non-nil.
func (hc *HelixClient) do(ctx context.Context, ts oauth2.TokenSource, method, path string, q url.Values, body, out any) error {
	tok, err := ts.Token()
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	u := hc.base() + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("helix %s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetUser resolves a login name to its user.
func (hc *HelixClient) GetUser(ctx context.Context, login string) (*User, error) {
	login = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(login), "#"))
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := hc.do(ctx, hc.Tokens, http.MethodGet, "/users", url.Values{"login": {login}}, nil, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, ErrUserNotFound
	}
	return &body.Data[0], nil
}

// Whisperer sends whispers from the bot account. The user token needs the
// user:manage:whispers scope.
type Whisperer struct {
	Helix  *HelixClient
	FromID string
	Tokens oauth2.TokenSource
}

// Whisper sends message to the user with id toUserID.
func (w *Whisperer) Whisper(ctx context.Context, toUserID, message string) error {
	if w.FromID == "" || toUserID == "" {
		return errors.New("whisper: missing user id")
	}
	q := url.Values{"from_user_id": {w.FromID}, "to_user_id": {toUserID}}
	return w.Helix.do(ctx, w.Tokens, http.MethodPost, "/whispers", q, map[string]string{"message": message}, nil)
}
