// Package rating looks up player ratings on chess.com and lichess.
package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/onnwee/battlesheet/telemetry"
)

// ErrUserNotFound is returned when the service has no such player.
var ErrUserNotFound = errors.New("user not found")

// APIError is any other failed lookup. Message is safe to show in chat.
type APIError struct {
	Site    string
	Message string
	Err     error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Err }

// Peak is the best rating a player reached. Zero fields mean the service
// has no peak on record.
type Peak struct {
	Rating int
	Date   string
}

// Result is a successful lookup.
type Result struct {
	Name   string
	Rating int
	Peak   *Peak
}

// Client looks up one player's rating for a game (blitz, bullet or rapid).
type Client interface {
	Lookup(ctx context.Context, handle, game string) (*Result, error)
	Site() string
}

const userAgent = "battlesheet/1.0 (twitch chat bot)"

// gate serializes requests to one service. Waiters queue in arrival order
// and give up when their context is done.
type gate chan struct{}

func newGate() gate { return make(gate, 1) }

func (g gate) acquire(ctx context.Context) error {
	select {
	case g <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g gate) release() { <-g }

type httpClient struct {
	site    string
	baseURL string
	http    *http.Client
	gate    gate
	log     *slog.Logger
}

func newHTTPClient(site, baseURL string, hc *http.Client, log *slog.Logger) httpClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return httpClient{site: site, baseURL: baseURL, http: hc, gate: newGate(), log: log.With(slog.String("site", site))}
}

// getJSON fetches path and decodes the body into out. statusErr maps non-2xx
// statuses to errors; it is consulted before the generic handling.
func (c *httpClient) getJSON(ctx context.Context, path string, out any, statusErr func(int) error) (err error) {
	start := time.Now()
	defer func() {
		res := "ok"
		switch {
		case errors.Is(err, ErrUserNotFound):
			res = "not_found"
		case err != nil:
			res = "error"
		}
		telemetry.ObserveLookup(c.site, time.Since(start), res)
	}()

	if err := c.gate.acquire(ctx); err != nil {
		return err
	}
	defer c.gate.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		var nerr net.Error
		var uerr *url.Error
		if errors.As(err, &nerr) || errors.As(err, &uerr) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &APIError{Site: c.site, Message: fmt.Sprintf("Couldn't connect to %s", c.site), Err: err}
		}
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if statusErr != nil {
			if err := statusErr(resp.StatusCode); err != nil {
				return err
			}
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrUserNotFound
		case http.StatusTooManyRequests:
			c.log.Warn("rate limited by rating service")
			return &APIError{Site: c.site, Message: "Too many requests; try again."}
		case http.StatusGatewayTimeout:
			return &APIError{Site: c.site, Message: fmt.Sprintf("%s took too long to answer; try again later.", c.site)}
		default:
			c.log.Error("unexpected status from rating service", slog.Int("status", resp.StatusCode), slog.String("path", path))
			return &APIError{Site: c.site, Message: fmt.Sprintf("%s answered with an error (%d).", c.site, resp.StatusCode)}
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Site: c.site, Message: fmt.Sprintf("Got a garbled answer from %s.", c.site), Err: err}
	}
	return nil
}
