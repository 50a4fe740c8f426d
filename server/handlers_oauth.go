package server

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/onnwee/battlesheet/db"
	"github.com/onnwee/battlesheet/telemetry"
	"github.com/onnwee/battlesheet/twitchapi"
)

// HandleTwitchOAuthStart initiates the Twitch OAuth flow by redirecting to Twitch.
func (h *Handlers) HandleTwitchOAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil || h.tokens == nil {
		http.Error(w, "oauth not configured (need TWITCH_CLIENT_ID + TWITCH_REDIRECT_URI)", http.StatusBadRequest)
		return
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "state gen error", http.StatusInternalServerError)
		return
	}
	st := hex.EncodeToString(b)
	if !h.addOAuthState(st) {
		http.Error(w, "too many pending authorizations", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, h.oauth.AuthCodeURL(st), http.StatusFound)
}

// HandleTwitchOAuthCallback exchanges the code and stores the bot's token.
func (h *Handlers) HandleTwitchOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil || h.tokens == nil {
		http.Error(w, "oauth not configured", http.StatusBadRequest)
		return
	}
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		http.Error(w, "missing code/state", http.StatusBadRequest)
		return
	}
	if !h.takeOAuthState(st) {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	log := telemetry.LoggerWithCorr(ctx, h.log)
	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		log.Warn("twitch code exchange failed", slog.Any("err", err))
		http.Error(w, "code exchange failed", http.StatusBadGateway)
		return
	}
	stored := db.Token{
		Access:  tok.AccessToken,
		Refresh: tok.RefreshToken,
		Expiry:  twitchapi.Expiry(tok),
		Scope:   twitchapi.GrantedScopes(tok),
	}
	if err := h.tokens.Upsert(ctx, twitchapi.Provider, stored); err != nil {
		log.Error("failed to store twitch token", slog.Any("err", err))
		http.Error(w, "failed to store token", http.StatusInternalServerError)
		return
	}
	log.Info("twitch token stored", slog.Time("expires_at", stored.Expiry), slog.String("scope", stored.Scope))
	if h.onToken != nil {
		h.onToken(stored)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"scope":      stored.Scope,
		"expires_at": stored.Expiry,
	})
}
