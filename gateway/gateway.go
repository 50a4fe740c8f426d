// Package gateway wraps the Google Sheets and Drive APIs for the channel sheets.
//
// Every remote call goes through call, which:
//   - reuses one authorized client per process until ReauthInterval elapses,
//     coalescing concurrent reauthorizations into a single token exchange;
//   - asks Advise how to treat a failure (wait RateLimitDelay on 429, wait
//     DefaultDelay on other service or network errors, reauthorize once on 401)
//     and re-invokes the call until MaxAttempts is spent;
//   - counts calls per quota window so error logs show how close we are to the limit.
//
// Spreadsheet ids are cached by title in a process-wide cache; Delete always
// evicts the title so a later open never sees a stale id.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/onnwee/battlesheet/telemetry"
)

const (
	DefaultReauthInterval = 45 * time.Minute
	DefaultRateLimitDelay = 30 * time.Second
	DefaultRetryDelay     = time.Second
	DefaultMaxAttempts    = 5
	DefaultTitleCacheTTL  = 30 * time.Minute

	tracerName = "battlesheet/gateway"
)

// TokenFunc performs a credential exchange and returns a fresh token.
type TokenFunc func(ctx context.Context) (*oauth2.Token, error)

// Options configures a Gateway. Zero values fall back to the package defaults.
type Options struct {
	Token          TokenFunc
	ReauthInterval time.Duration
	RateLimitDelay time.Duration
	// DefaultDelay is the wait after non-quota service errors and network errors.
	DefaultDelay  time.Duration
	MaxAttempts   int
	TitleCacheTTL time.Duration
	// ClientOptions are appended when building the Sheets/Drive services.
	ClientOptions []option.ClientOption
	Logger        *slog.Logger
}

type client struct {
	sheets       *sheets.Service
	drive        *drive.Service
	authorizedAt time.Time
}

// Gateway is the process-wide entry point to the spreadsheet service. Create
// one at startup and share it; it is safe for concurrent use.
type Gateway struct {
	token          TokenFunc
	reauthInterval time.Duration
	rateLimitDelay time.Duration
	defaultDelay   time.Duration
	maxAttempts    int
	clientOpts     []option.ClientOption
	log            *slog.Logger
	counter        *RateCounter
	titles         *bigcache.BigCache
	group          singleflight.Group
	now            func() time.Time

	mu      sync.Mutex
	current *client
}

// New builds a Gateway. The title cache lives until ctx is done.
func New(ctx context.Context, opts Options) (*Gateway, error) {
	if opts.Token == nil {
		return nil, errors.New("gateway: no token source configured")
	}
	g := &Gateway{
		token:          opts.Token,
		reauthInterval: opts.ReauthInterval,
		rateLimitDelay: opts.RateLimitDelay,
		defaultDelay:   opts.DefaultDelay,
		maxAttempts:    opts.MaxAttempts,
		clientOpts:     opts.ClientOptions,
		log:            opts.Logger,
		counter:        NewRateCounter(quotaWindow),
		now:            time.Now,
	}
	if g.reauthInterval <= 0 {
		g.reauthInterval = DefaultReauthInterval
	}
	if g.rateLimitDelay <= 0 {
		g.rateLimitDelay = DefaultRateLimitDelay
	}
	if g.defaultDelay <= 0 {
		g.defaultDelay = DefaultRetryDelay
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	g.log = g.log.With(slog.String("component", "sheets_gateway"))

	ttl := opts.TitleCacheTTL
	if ttl <= 0 {
		ttl = DefaultTitleCacheTTL
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 16
	cfg.Verbose = false
	titles, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gateway: title cache: %w", err)
	}
	g.titles = titles
	return g, nil
}

// authorize returns the cached client, or performs a credential exchange when
// there is none or it is older than the reauth interval. Concurrent callers
// wait on the same exchange.
func (g *Gateway) authorize(ctx context.Context) (*client, error) {
	g.mu.Lock()
	c := g.current
	g.mu.Unlock()
	if c != nil && g.now().Sub(c.authorizedAt) < g.reauthInterval {
		return c, nil
	}
	v, err, _ := g.group.Do("authorize", func() (any, error) {
		g.mu.Lock()
		cur := g.current
		g.mu.Unlock()
		if cur != nil && cur != c && g.now().Sub(cur.authorizedAt) < g.reauthInterval {
			return cur, nil
		}
		// the exchange is shared, so one caller's cancellation must not fail the others
		actx := context.WithoutCancel(ctx)
		tok, err := g.token(actx)
		if err != nil {
			return nil, err
		}
		opts := make([]option.ClientOption, 0, len(g.clientOpts)+1)
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(tok)))
		opts = append(opts, g.clientOpts...)
		ss, err := sheets.NewService(actx, opts...)
		if err != nil {
			return nil, fmt.Errorf("sheets service: %w", err)
		}
		ds, err := drive.NewService(actx, opts...)
		if err != nil {
			return nil, fmt.Errorf("drive service: %w", err)
		}
		nc := &client{sheets: ss, drive: ds, authorizedAt: g.now()}
		g.mu.Lock()
		g.current = nc
		g.mu.Unlock()
		if telemetry.SheetAuthorizations != nil {
			telemetry.SheetAuthorizations.Inc()
		}
		g.log.Debug("authorized sheets client")
		return nc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*client), nil
}

// invalidate drops c if it is still the cached client.
func (g *Gateway) invalidate(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == c {
		g.current = nil
	}
}

// Ping makes sure a client can be authorized.
func (g *Gateway) Ping(ctx context.Context) error {
	if _, err := g.authorize(ctx); err != nil {
		return &FatalError{Op: "authorize", Err: err}
	}
	return nil
}

// CallsInWindow reports the calls made in the current quota window.
func (g *Gateway) CallsInWindow() int { return g.counter.Count(g.now()) }

// Advise tells the caller whether a failed call should be re-invoked and how
// long to wait first. reauthed reports whether this call already spent its
// single reauthorization.
func (g *Gateway) Advise(err error, reauthed bool) Verdict {
	class := Classify(err)
	switch class {
	case ErrorClassRateLimited:
		return Verdict{Class: class, Retry: true, Wait: g.rateLimitDelay}
	case ErrorClassRetryable:
		return Verdict{Class: class, Retry: true, Wait: g.defaultDelay}
	case ErrorClassUnauthorized:
		return Verdict{Class: class, Retry: !reauthed}
	default:
		return Verdict{Class: class}
	}
}

// call runs fn with an authorized client, re-invoking it as Advise says until
// it succeeds, fails permanently, or the attempt budget is spent.
func call[T any](ctx context.Context, g *Gateway, op string, fn func(context.Context, *client) (T, error)) (T, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "sheets."+op, attribute.String("sheets.op", op))
	defer span.End()

	var (
		zero      T
		attempts  int
		reauthed  bool
		lastErr   error
		lastClass ErrorClass
	)
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		c, err := g.authorize(ctx)
		if err != nil {
			return zero, backoff.Permanent(&FatalError{Op: "authorize", Err: err})
		}
		inWindow := g.counter.Add(g.now())
		telemetry.SetSheetCallsInWindow(inWindow)

		start := time.Now()
		out, err := fn(ctx, c)
		telemetry.ObserveSheetCall(op, time.Since(start), err)
		if err == nil {
			return out, nil
		}

		v := g.Advise(err, reauthed)
		lastErr, lastClass = err, v.Class
		switch v.Class {
		case ErrorClassNotFound:
			if errors.Is(err, ErrNotFound) {
				return zero, backoff.Permanent(fmt.Errorf("sheets %s: %w", op, err))
			}
			return zero, backoff.Permanent(fmt.Errorf("sheets %s: %w: %v", op, ErrNotFound, err))
		case ErrorClassUnauthorized:
			g.invalidate(c)
			if !v.Retry {
				return zero, backoff.Permanent(&FatalError{Op: op, Err: err})
			}
			reauthed = true
		case ErrorClassRateLimited:
			if telemetry.SheetRateLimited != nil {
				telemetry.SheetRateLimited.Inc()
			}
		case ErrorClassFatal:
			return zero, backoff.Permanent(fmt.Errorf("sheets %s: %w", op, err))
		}
		g.log.Warn("sheets call failed; retrying",
			slog.String("op", op),
			slog.String("class", v.Class.String()),
			slog.Duration("wait", v.Wait),
			slog.Int("attempt", attempts),
			slog.Int("calls_in_window", inWindow),
			slog.Int("calls_prev_window", g.counter.Previous(g.now())),
			slog.Any("err", err))
		return zero, &backoff.RetryAfterError{Duration: v.Wait}
	}, backoff.WithMaxTries(uint(g.maxAttempts)))
	if err == nil {
		return res, nil
	}

	// the attempt budget ran out on a retryable error, or the last attempt was permanent
	var perm *backoff.PermanentError
	var retryAfter *backoff.RetryAfterError
	switch {
	case errors.As(err, &perm):
		err = perm.Err
	case errors.As(err, &retryAfter):
		err = &TransientError{Op: op, Attempts: attempts, Class: lastClass, Err: lastErr}
		g.log.Error("sheets call exhausted retries",
			slog.String("op", op),
			slog.Int("attempts", attempts),
			slog.Int("calls_in_window", g.counter.Count(g.now())),
			slog.Any("err", lastErr))
	}
	telemetry.RecordError(span, err)
	return zero, err
}
