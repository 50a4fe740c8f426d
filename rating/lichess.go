package rating

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultLichessURL is the lichess API.
const DefaultLichessURL = "https://lichess.org"

// Lichess looks up current ratings on lichess. Lichess reports no peak.
type Lichess struct {
	c httpClient
}

// NewLichess builds a client. An empty baseURL uses DefaultLichessURL.
func NewLichess(baseURL string, hc *http.Client, log *slog.Logger) *Lichess {
	if baseURL == "" {
		baseURL = DefaultLichessURL
	}
	return &Lichess{c: newHTTPClient("lichess", strings.TrimRight(baseURL, "/"), hc, log)}
}

func (l *Lichess) Site() string { return "lichess" }

type lichessUser struct {
	Username string `json:"username"`
	Disabled bool   `json:"disabled"`
	Perfs    map[string]struct {
		Rating int `json:"rating"`
		Games  int `json:"games"`
	} `json:"perfs"`
}

// Lookup returns the correctly cased username and the rating for game.
func (l *Lichess) Lookup(ctx context.Context, handle, game string) (*Result, error) {
	var u lichessUser
	if err := l.c.getJSON(ctx, "/api/user/"+url.PathEscape(handle), &u, nil); err != nil {
		return nil, err
	}
	if u.Disabled || u.Username == "" {
		return nil, ErrUserNotFound
	}
	perf, ok := u.Perfs[game]
	if !ok {
		return nil, &APIError{Site: "lichess", Message: fmt.Sprintf("No rating data found for %s in %s", u.Username, game)}
	}
	return &Result{Name: u.Username, Rating: perf.Rating}, nil
}

// Clients maps each supported site to its client.
func Clients(chessComURL, lichessURL string, hc *http.Client, log *slog.Logger) map[string]Client {
	return map[string]Client{
		"chess.com": NewChessCom(chessComURL, hc, log),
		"lichess":   NewLichess(lichessURL, hc, log),
	}
}
