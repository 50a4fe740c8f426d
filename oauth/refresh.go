// Package oauth keeps the bot account's chat token fresh. Tokens live in the
// oauth_tokens table; a Refresher checks them on a jittered schedule and
// refreshes when expiry falls within a window.
package oauth

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/battlesheet/db"
)

// Store is the token persistence the refresher needs.
type Store interface {
	Get(ctx context.Context, provider string) (db.Token, bool, error)
	Upsert(ctx context.Context, provider string, tok db.Token) error
}

// RefreshFunc performs the provider-specific refresh grant.
type RefreshFunc func(ctx context.Context, refreshToken string) (db.Token, error)

// ErrNoRefreshToken is returned by Check when the stored token cannot be
// refreshed.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// Refresher periodically refreshes one provider's token.
type Refresher struct {
	Store    Store
	Provider string
	Refresh  RefreshFunc
	// Interval is how often to wake up; Window is how close to expiry a
	// token must be before it is refreshed.
	Interval time.Duration
	Window   time.Duration
	// OnRefresh, if set, receives every newly persisted token.
	OnRefresh func(db.Token)
	Log       *slog.Logger
}

func (r *Refresher) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

func (r *Refresher) defaults() (interval, window time.Duration) {
	interval, window = r.Interval, r.Window
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return interval, window
}

// Check refreshes the token once if it is inside the window. It reports
// whether a refresh happened.
func (r *Refresher) Check(ctx context.Context) (bool, error) {
	_, window := r.defaults()
	cur, ok, err := r.Store.Get(ctx, r.Provider)
	if err != nil {
		return false, err
	}
	if !ok || cur.Refresh == "" {
		return false, ErrNoRefreshToken
	}
	if !cur.Expiry.IsZero() && time.Until(cur.Expiry) > window {
		return false, nil
	}
	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	next, err := r.Refresh(ctx2, cur.Refresh)
	cancel()
	if err != nil {
		return false, err
	}
	if next.Refresh == "" {
		next.Refresh = cur.Refresh
	}
	if next.Scope == "" {
		next.Scope = cur.Scope
	}
	if err := r.Store.Upsert(ctx, r.Provider, next); err != nil {
		return false, err
	}
	r.logger().Info("token refreshed", slog.String("provider", r.Provider), slog.Time("expires_at", next.Expiry))
	if r.OnRefresh != nil {
		r.OnRefresh(next)
	}
	return true, nil
}

// Start runs Check in a goroutine until ctx is done.
func (r *Refresher) Start(ctx context.Context) {
	interval, _ := r.defaults()
	//nolint:gosec // G404: scheduling jitter only
	initial := time.Duration(rand.Int63n(int64(interval/2) + 1))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initial):
		}
		for {
			if _, err := r.Check(ctx); err != nil && ctx.Err() == nil {
				r.logger().Warn("token refresh failed", slog.String("provider", r.Provider), slog.Any("err", err))
			}
			// ±20% of interval
			jitterRange := int64(interval/5) + 1
			//nolint:gosec // G404: scheduling jitter only
			next := interval + time.Duration(rand.Int63n(jitterRange*2)-jitterRange)
			select {
			case <-ctx.Done():
				return
			case <-time.After(next):
			}
		}
	}()
}

// TokenSource serves the stored access token, reading the store on every
// call so refreshed tokens are picked up.
func (r *Refresher) TokenSource(ctx context.Context) oauth2.TokenSource {
	return storeSource{ctx: ctx, r: r}
}

type storeSource struct {
	ctx context.Context
	r   *Refresher
}

func (s storeSource) Token() (*oauth2.Token, error) {
	tok, ok, err := s.r.Store.Get(s.ctx, s.r.Provider)
	if err != nil {
		return nil, err
	}
	if !ok || tok.Access == "" {
		return nil, errors.New("no access token stored for " + s.r.Provider)
	}
	return &oauth2.Token{AccessToken: tok.Access, RefreshToken: tok.Refresh, Expiry: tok.Expiry, TokenType: "Bearer"}, nil
}
