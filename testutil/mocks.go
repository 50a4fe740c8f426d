package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockTwitchServer serves the Twitch endpoints the bot calls. Helix routes
// live under /helix, so HelixBase is the client's BaseURL and TokenURL the
// OAuth token endpoint.
type MockTwitchServer struct {
	*httptest.Server

	mu       sync.Mutex
	Handlers map[string]http.HandlerFunc
	whispers []Whisper
}

// Whisper is one captured POST /helix/whispers.
type Whisper struct {
	From, To, Message string
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		handler, ok := m.Handlers[r.URL.Path]
		m.mu.Unlock()
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *MockTwitchServer) HelixBase() string { return m.URL + "/helix" }
func (m *MockTwitchServer) TokenURL() string  { return m.URL + "/oauth2/token" }

func (m *MockTwitchServer) handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[path] = h
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockUsers answers /helix/users for the given login→id pairs; other logins
// get an empty data array.
func (m *MockTwitchServer) MockUsers(users map[string]string) {
	m.handle("/helix/users", func(w http.ResponseWriter, r *http.Request) {
		login := r.URL.Query().Get("login")
		data := []map[string]string{}
		if id, ok := users[login]; ok {
			data = append(data, map[string]string{"id": id, "login": login, "display_name": login})
		}
		writeJSON(w, map[string]any{"data": data})
	})
}

// MockWhispers accepts /helix/whispers and records each one.
func (m *MockTwitchServer) MockWhispers() {
	m.handle("/helix/whispers", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck // test mock request
		m.mu.Lock()
		m.whispers = append(m.whispers, Whisper{
			From:    r.URL.Query().Get("from_user_id"),
			To:      r.URL.Query().Get("to_user_id"),
			Message: body.Message,
		})
		m.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
}

// Whispers returns the whispers received so far.
func (m *MockTwitchServer) Whispers() []Whisper {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Whisper(nil), m.whispers...)
}

// MockOAuthTokenResponse adds a handler for OAuth token endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.handle("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"access_token":  accessToken,
			"refresh_token": accessToken + "-refresh",
			"expires_in":    expiresIn,
			"scope":         []string{"chat:read", "chat:edit", "user:manage:whispers"},
			"token_type":    "bearer",
		})
	})
}
