package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/onnwee/battlesheet/db"
	"github.com/onnwee/battlesheet/sheet"
)

const (
	// Maximum number of OAuth states to keep in memory
	maxOAuthStates = 10000
	stateTTL       = 10 * time.Minute
)

// Pinger is a dependency a readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SheetSource lists the open channel sheets. *bot.Bot implements it.
type SheetSource interface {
	Sheets() map[string]*sheet.ChannelSheet
}

// QuotaCounter reports spreadsheet calls in the current quota window.
// *gateway.Gateway implements it.
type QuotaCounter interface {
	CallsInWindow() int
}

// TokenSaver persists OAuth tokens. *db.TokenStore implements it.
type TokenSaver interface {
	Upsert(ctx context.Context, provider string, tok db.Token) error
}

// Deps are the collaborators handlers need. Nil members disable the routes
// or checks that use them.
type Deps struct {
	DB         Pinger
	Sheets     Pinger
	Channels   SheetSource
	Quota      QuotaCounter
	Tokens     TokenSaver
	OAuth      *oauth2.Config
	AdminToken string
	// OnToken is called after the OAuth callback stores a new token.
	OnToken func(db.Token)
	Logger  *slog.Logger
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db         Pinger
	sheets     Pinger
	channels   SheetSource
	quota      QuotaCounter
	tokens     TokenSaver
	oauth      *oauth2.Config
	adminToken string
	onToken    func(db.Token)
	log        *slog.Logger

	stateMu    sync.Mutex
	stateStore map[string]time.Time
	now        func() time.Time
}

func NewHandlers(d Deps) *Handlers {
	h := &Handlers{
		db:         d.DB,
		sheets:     d.Sheets,
		channels:   d.Channels,
		quota:      d.Quota,
		tokens:     d.Tokens,
		oauth:      d.OAuth,
		adminToken: d.AdminToken,
		onToken:    d.OnToken,
		log:        d.Logger,
		stateStore: make(map[string]time.Time),
		now:        time.Now,
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	return h
}

// addOAuthState remembers state until it expires. It reports false when the
// store is full even after dropping expired states.
func (h *Handlers) addOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	now := h.now()
	if len(h.stateStore) >= maxOAuthStates || len(h.stateStore)%100 == 0 {
		for s, exp := range h.stateStore {
			if now.After(exp) {
				delete(h.stateStore, s)
			}
		}
	}
	if len(h.stateStore) >= maxOAuthStates {
		return false
	}
	h.stateStore[state] = now.Add(stateTTL)
	return true
}

// takeOAuthState consumes state, reporting whether it was known and live.
func (h *Handlers) takeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	exp, ok := h.stateStore[state]
	delete(h.stateStore, state)
	return ok && !h.now().After(exp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz checks the database and that the spreadsheet service accepts
// our credentials.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		p    Pinger
	}{
		{"database", h.db},
		{"sheets", h.sheets},
	}
	for _, check := range checks {
		if check.p == nil {
			continue
		}
		if err := check.p.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type channelView struct {
	Channel       string `json:"channel"`
	Site          string `json:"site"`
	Game          string `json:"game"`
	Format        string `json:"format"`
	SpreadsheetID string `json:"spreadsheet_id"`
	URL           string `json:"url"`
	Subs          int    `json:"subs"`
	NotSubs       int    `json:"not_subs"`
}

func viewOf(cs *sheet.ChannelSheet) channelView {
	s := cs.Settings()
	v := channelView{
		Channel:       cs.Channel(),
		Site:          string(s.Site),
		Game:          string(s.Game),
		Format:        string(s.Format),
		SpreadsheetID: cs.SpreadsheetID(),
		URL:           cs.URL(),
	}
	for _, loc := range cs.Users() {
		if loc.Worksheet == sheet.SubsWorksheet {
			v.Subs++
		} else {
			v.NotSubs++
		}
	}
	return v
}

// HandleChannels lists every joined channel with its settings and row counts.
func (h *Handlers) HandleChannels(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		http.Error(w, "bot not running", http.StatusServiceUnavailable)
		return
	}
	sheets := h.channels.Sheets()
	out := make([]channelView, 0, len(sheets))
	for _, cs := range sheets {
		out = append(out, viewOf(cs))
	}
	slices.SortFunc(out, func(a, b channelView) int { return strings.Compare(a.Channel, b.Channel) })
	resp := map[string]any{"channels": out, "count": len(out)}
	if h.quota != nil {
		resp["sheet_calls_in_window"] = h.quota.CallsInWindow()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleChannel shows one joined channel.
func (h *Handlers) HandleChannel(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		http.Error(w, "bot not running", http.StatusServiceUnavailable)
		return
	}
	name := strings.ToLower(chi.URLParam(r, "channel"))
	cs, ok := h.channels.Sheets()[name]
	if !ok {
		http.Error(w, "channel not joined", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(cs))
}
