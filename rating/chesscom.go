package rating

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultChessComURL is the chess.com published-data API.
const DefaultChessComURL = "https://api.chess.com"

var chessComFields = map[string]string{
	"blitz":  "chess_blitz",
	"bullet": "chess_bullet",
	"rapid":  "chess_rapid",
}

// ChessCom looks up current and best ratings on chess.com.
type ChessCom struct {
	c httpClient
}

// NewChessCom builds a client. An empty baseURL uses DefaultChessComURL and a
// nil hc uses a client with a 15s timeout.
func NewChessCom(baseURL string, hc *http.Client, log *slog.Logger) *ChessCom {
	if baseURL == "" {
		baseURL = DefaultChessComURL
	}
	return &ChessCom{c: newHTTPClient("chess.com", strings.TrimRight(baseURL, "/"), hc, log)}
}

func (cc *ChessCom) Site() string { return "chess.com" }

type chessComRecord struct {
	Last *struct {
		Rating int `json:"rating"`
	} `json:"last"`
	Best *struct {
		Rating int   `json:"rating"`
		Date   int64 `json:"date"`
	} `json:"best"`
}

// Lookup returns the player's last rating and best rating for game. The name
// is returned as given; chess.com handles are case-insensitive.
func (cc *ChessCom) Lookup(ctx context.Context, handle, game string) (*Result, error) {
	field, ok := chessComFields[game]
	if !ok {
		return nil, fmt.Errorf("unsupported game %q", game)
	}
	// Top-level values are not all records ("fide" is a number), so only the
	// requested variant is decoded.
	var stats map[string]json.RawMessage
	err := cc.c.getJSON(ctx, "/pub/player/"+url.PathEscape(strings.ToLower(handle))+"/stats", &stats, func(code int) error {
		if code == http.StatusGone {
			return &APIError{Site: "chess.com", Message: "That request confused even chess.com."}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var rec chessComRecord
	if raw, ok := stats[field]; ok {
		if err := json.Unmarshal(raw, &rec); err != nil {
			cc.c.log.Warn("undecodable rating record", slog.String("field", field), slog.Any("err", err))
			return nil, &APIError{Site: "chess.com", Message: "Got a garbled answer from chess.com.", Err: err}
		}
	}
	if rec.Last == nil {
		return nil, &APIError{Site: "chess.com", Message: fmt.Sprintf("No rating data found for %s in %s", handle, game)}
	}
	res := &Result{Name: handle, Rating: rec.Last.Rating, Peak: &Peak{}}
	// best is absent for players without a won game
	if rec.Best != nil {
		res.Peak.Rating = rec.Best.Rating
		res.Peak.Date = time.Unix(rec.Best.Date, 0).UTC().Format(time.DateOnly)
	}
	return res, nil
}
