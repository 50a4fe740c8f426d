package db

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/onnwee/battlesheet/crypto"
)

// setupTestDB opens TEST_PG_DSN and runs Migrate; skipped when unset.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := Migrate(context.Background(), database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func testChannel(t *testing.T, db *sql.DB) string {
	t.Helper()
	name := "test_" + strings.ToLower(strings.ReplaceAll(t.Name(), "/", "_"))
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM channel_settings WHERE channel = $1`, name)
	})
	return name
}

func TestMigrateIdempotent(t *testing.T) {
	db := setupTestDB(t)
	for i := 0; i < 2; i++ {
		if err := Migrate(context.Background(), db); err != nil {
			t.Fatalf("Migrate run %d: %v", i, err)
		}
	}
	for _, table := range []string{"channel_settings", "oauth_tokens", "kv"} {
		var exists bool
		err := db.QueryRow(`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		if err != nil || !exists {
			t.Errorf("table %s missing (err %v)", table, err)
		}
	}
}

func TestGetSettingsCreatesDefaults(t *testing.T) {
	db := setupTestDB(t)
	store := NewSettingsStore(db)
	ctx := context.Background()
	ch := testChannel(t, db)

	got, err := store.GetSettings(ctx, ch)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.Channel != ch || got.Site != "chess.com" || got.Game != "blitz" || got.Format != "none" || got.SpreadsheetID.Valid {
		t.Errorf("defaults = %+v", got)
	}

	// second call returns the same row
	again, err := store.GetSettings(ctx, ch)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !again.CreatedAt.Equal(got.CreatedAt) {
		t.Errorf("row recreated: %v vs %v", again.CreatedAt, got.CreatedAt)
	}
}

func TestUpdateSettings(t *testing.T) {
	db := setupTestDB(t)
	store := NewSettingsStore(db)
	ctx := context.Background()
	ch := testChannel(t, db)

	updates := []struct{ field, value string }{
		{"site", "lichess"},
		{"game", "bullet"},
		{"format", "bracket"},
	}
	for _, u := range updates {
		if err := store.UpdateSetting(ctx, ch, u.field, u.value); err != nil {
			t.Fatalf("UpdateSetting(%s): %v", u.field, err)
		}
	}
	if err := store.StoreSpreadsheetID(ctx, ch, "sheet-123"); err != nil {
		t.Fatalf("StoreSpreadsheetID: %v", err)
	}

	got, err := store.GetSettings(ctx, ch)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.Site != "lichess" || got.Game != "bullet" || got.Format != "bracket" || got.SpreadsheetID.String != "sheet-123" {
		t.Errorf("settings = %+v", got)
	}

	var ufe *UnknownFieldError
	if err := store.UpdateSetting(ctx, ch, "channel; DROP TABLE kv", "x"); !errors.As(err, &ufe) {
		t.Errorf("err = %v, want UnknownFieldError", err)
	}
}

func TestListAndDeleteChannels(t *testing.T) {
	db := setupTestDB(t)
	store := NewSettingsStore(db)
	ctx := context.Background()
	ch := testChannel(t, db)

	if _, err := store.GetSettings(ctx, ch); err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	channels, err := store.AllChannels(ctx)
	if err != nil {
		t.Fatalf("AllChannels: %v", err)
	}
	if !contains(channels, ch) {
		t.Errorf("AllChannels = %v, missing %s", channels, ch)
	}
	all, err := store.AllSettings(ctx)
	if err != nil {
		t.Fatalf("AllSettings: %v", err)
	}
	found := false
	for _, s := range all {
		found = found || s.Channel == ch
	}
	if !found {
		t.Errorf("AllSettings missing %s", ch)
	}

	if err := store.DeleteChannel(ctx, ch); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	channels, _ = store.AllChannels(ctx)
	if contains(channels, ch) {
		t.Errorf("channel %s still listed", ch)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestTokenStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	enc, err := crypto.NewAESEncryptor(key)
	if err != nil {
		t.Fatalf("NewAESEncryptor: %v", err)
	}

	tests := []struct {
		name string
		enc  crypto.Encryptor
	}{
		{"plaintext", nil},
		{"encrypted", enc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := "test-" + tt.name
			t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM oauth_tokens WHERE provider = $1`, provider) })
			store := NewTokenStore(db, tt.enc)

			if _, ok, err := store.Get(ctx, provider); err != nil || ok {
				t.Fatalf("Get before upsert = %v, %v", ok, err)
			}
			want := Token{Access: "access-1", Refresh: "refresh-1", Expiry: time.Now().Add(time.Hour).UTC().Truncate(time.Second), Scope: "chat:read chat:edit"}
			if err := store.Upsert(ctx, provider, want); err != nil {
				t.Fatalf("Upsert: %v", err)
			}
			got, ok, err := store.Get(ctx, provider)
			if err != nil || !ok {
				t.Fatalf("Get = %v, %v", ok, err)
			}
			if got.Access != want.Access || got.Refresh != want.Refresh || got.Scope != want.Scope || !got.Expiry.Equal(want.Expiry) {
				t.Errorf("Get = %+v, want %+v", got, want)
			}

			var stored string
			if err := db.QueryRow(`SELECT access_token FROM oauth_tokens WHERE provider = $1`, provider).Scan(&stored); err != nil {
				t.Fatalf("raw select: %v", err)
			}
			if (stored == want.Access) != (tt.enc == nil) {
				t.Errorf("stored access token = %q (encryptor %v)", stored, tt.enc != nil)
			}
		})
	}

	t.Run("plaintext providers", func(t *testing.T) {
		t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM oauth_tokens WHERE provider IN ('test-plain', 'test-sealed')`) })
		if err := NewTokenStore(db, nil).Upsert(ctx, "test-plain", Token{Access: "a"}); err != nil {
			t.Fatal(err)
		}
		if err := NewTokenStore(db, enc).Upsert(ctx, "test-sealed", Token{Access: "a"}); err != nil {
			t.Fatal(err)
		}
		got, err := NewTokenStore(db, nil).PlaintextProviders(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !contains(got, "test-plain") || contains(got, "test-sealed") {
			t.Errorf("PlaintextProviders = %v", got)
		}
	})

	t.Run("encrypted row without key", func(t *testing.T) {
		provider := "test-nokey"
		t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM oauth_tokens WHERE provider = $1`, provider) })
		if err := NewTokenStore(db, enc).Upsert(ctx, provider, Token{Access: "a", Refresh: "r"}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if _, _, err := NewTokenStore(db, nil).Get(ctx, provider); err == nil {
			t.Error("expected error reading encrypted token without key")
		}
	})
}

func TestKV(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM kv WHERE key = 'test_kv'`) })

	if v, err := GetKV(ctx, db, "test_kv"); err != nil || v != "" {
		t.Fatalf("GetKV before set = %q, %v", v, err)
	}
	if err := SetKV(ctx, db, "test_kv", "one"); err != nil {
		t.Fatalf("SetKV: %v", err)
	}
	if err := SetKV(ctx, db, "test_kv", "two"); err != nil {
		t.Fatalf("SetKV: %v", err)
	}
	if v, _ := GetKV(ctx, db, "test_kv"); v != "two" {
		t.Errorf("GetKV = %q, want two", v)
	}
}

func TestConnectDefaultsDSN(t *testing.T) {
	db, err := Connect("")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
}
