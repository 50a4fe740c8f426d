package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type tokenCounter struct {
	calls atomic.Int32
	err   error
	wait  chan struct{}
}

func (tc *tokenCounter) token(ctx context.Context) (*oauth2.Token, error) {
	tc.calls.Add(1)
	if tc.wait != nil {
		<-tc.wait
	}
	if tc.err != nil {
		return nil, tc.err
	}
	return &oauth2.Token{AccessToken: "test-token"}, nil
}

func newTestGateway(t *testing.T, tc *tokenCounter) *Gateway {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	g, err := New(ctx, Options{
		Token:          tc.token,
		RateLimitDelay: time.Millisecond,
		DefaultDelay:   time.Millisecond,
		MaxAttempts:    5,
		ClientOptions:  []option.ClientOption{option.WithEndpoint("http://127.0.0.1:1/")},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func apiErr(code int) error { return &googleapi.Error{Code: code, Message: http.StatusText(code)} }

// scripted returns an operation that fails with errs in order, then succeeds.
func scripted(errs ...error) (func(context.Context, *client) (string, error), *int) {
	n := 0
	return func(ctx context.Context, c *client) (string, error) {
		n++
		if n <= len(errs) {
			return "", errs[n-1]
		}
		return "ok", nil
	}, &n
}

func TestCallRetryPolicy(t *testing.T) {
	tests := []struct {
		name         string
		errs         []error
		wantCalls    int
		wantErr      bool
		wantNotFound bool
		wantTrans    bool
		wantFatal    bool
	}{
		{name: "success", wantCalls: 1},
		{name: "rate limited then ok", errs: []error{apiErr(429), apiErr(429)}, wantCalls: 3},
		{name: "server error then ok", errs: []error{apiErr(500)}, wantCalls: 2},
		{name: "network error then ok", errs: []error{&timeoutErr{}}, wantCalls: 2},
		{name: "unauthorized once", errs: []error{apiErr(401)}, wantCalls: 2},
		{name: "unauthorized twice", errs: []error{apiErr(401), apiErr(401)}, wantCalls: 2, wantErr: true, wantFatal: true},
		{name: "not found", errs: []error{apiErr(404)}, wantCalls: 1, wantErr: true, wantNotFound: true},
		{name: "plain error is permanent", errs: []error{errors.New("bad payload")}, wantCalls: 1, wantErr: true},
		{
			name:      "exhausted",
			errs:      []error{apiErr(503), apiErr(503), apiErr(503), apiErr(503), apiErr(503)},
			wantCalls: 5, wantErr: true, wantTrans: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, &tokenCounter{})
			fn, n := scripted(tt.errs...)
			got, err := call(context.Background(), g, "test", fn)
			if *n != tt.wantCalls {
				t.Errorf("calls = %d, want %d", *n, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != "ok" {
				t.Errorf("result = %q, want ok", got)
			}
			if tt.wantNotFound && !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
			var te *TransientError
			if errors.As(err, &te) != tt.wantTrans {
				t.Errorf("TransientError = %v, want %v (err %v)", te, tt.wantTrans, err)
			}
			if te != nil {
				if te.Attempts != 5 || te.Class != ErrorClassRetryable {
					t.Errorf("TransientError = %+v", te)
				}
				var gerr *googleapi.Error
				if !errors.As(te, &gerr) || gerr.Code != 503 {
					t.Errorf("TransientError does not carry last cause: %v", te.Err)
				}
			}
			var fe *FatalError
			if errors.As(err, &fe) != tt.wantFatal {
				t.Errorf("FatalError = %v, want %v", fe, tt.wantFatal)
			}
		})
	}
}

type timeoutErr struct{}

func (*timeoutErr) Error() string   { return "i/o timeout" }
func (*timeoutErr) Timeout() bool   { return true }
func (*timeoutErr) Temporary() bool { return true }

func TestCallReauthorizesOnUnauthorized(t *testing.T) {
	tc := &tokenCounter{}
	g := newTestGateway(t, tc)
	fn, _ := scripted(apiErr(401))
	if _, err := call(context.Background(), g, "test", fn); err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := tc.calls.Load(); got != 2 {
		t.Errorf("token exchanges = %d, want 2", got)
	}
}

func TestAuthorizeCachesClient(t *testing.T) {
	tc := &tokenCounter{}
	g := newTestGateway(t, tc)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := g.authorize(context.Background()); err != nil {
			t.Fatalf("authorize: %v", err)
		}
	}
	if got := tc.calls.Load(); got != 1 {
		t.Fatalf("token exchanges = %d, want 1", got)
	}

	now = now.Add(DefaultReauthInterval + time.Second)
	if _, err := g.authorize(context.Background()); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if got := tc.calls.Load(); got != 2 {
		t.Errorf("token exchanges after interval = %d, want 2", got)
	}
}

func TestAuthorizeCoalescesConcurrentCallers(t *testing.T) {
	tc := &tokenCounter{wait: make(chan struct{})}
	g := newTestGateway(t, tc)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.authorize(context.Background())
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(tc.wait)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("authorize: %v", err)
		}
	}
	if got := tc.calls.Load(); got != 1 {
		t.Errorf("token exchanges = %d, want 1", got)
	}
}

func TestAuthorizeFailureIsFatal(t *testing.T) {
	g := newTestGateway(t, &tokenCounter{err: errors.New("bad key")})
	fn, n := scripted()
	_, err := call(context.Background(), g, "test", fn)
	var fe *FatalError
	if !errors.As(err, &fe) || fe.Op != "authorize" {
		t.Fatalf("err = %v, want FatalError{authorize}", err)
	}
	if *n != 0 {
		t.Errorf("operation ran %d times without credentials", *n)
	}
	if err := g.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded with failing credentials")
	}
}

func TestAdvise(t *testing.T) {
	g := newTestGateway(t, &tokenCounter{})
	tests := []struct {
		name     string
		err      error
		reauthed bool
		want     Verdict
	}{
		{"quota", apiErr(429), false, Verdict{Class: ErrorClassRateLimited, Retry: true, Wait: time.Millisecond}},
		{"server", apiErr(500), false, Verdict{Class: ErrorClassRetryable, Retry: true, Wait: time.Millisecond}},
		{"bad request", apiErr(400), false, Verdict{Class: ErrorClassRetryable, Retry: true, Wait: time.Millisecond}},
		{"unauthorized", apiErr(401), false, Verdict{Class: ErrorClassUnauthorized, Retry: true}},
		{"unauthorized again", apiErr(401), true, Verdict{Class: ErrorClassUnauthorized}},
		{"not found", apiErr(404), false, Verdict{Class: ErrorClassNotFound}},
		{"sentinel", ErrNotFound, false, Verdict{Class: ErrorClassNotFound}},
		{"canceled", context.Canceled, false, Verdict{Class: ErrorClassFatal}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Advise(tt.err, tt.reauthed); got != tt.want {
				t.Errorf("Advise = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("New without token source succeeded")
	}
}

func TestCallsInWindow(t *testing.T) {
	g := newTestGateway(t, &tokenCounter{})
	now := time.Unix(1000, 0)
	g.now = func() time.Time { return now }
	fn, _ := scripted(apiErr(500))
	if _, err := call(context.Background(), g, "test", fn); err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := g.CallsInWindow(); got != 2 {
		t.Errorf("CallsInWindow = %d, want 2", got)
	}
}
