package main

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/onnwee/battlesheet/crypto"
	"github.com/onnwee/battlesheet/db"
	"github.com/onnwee/battlesheet/testutil"
)

type fakeStore struct {
	plain   map[string]db.Token
	sealed  map[string]db.Token
	failFor string
}

func (f *fakeStore) PlaintextProviders(context.Context) ([]string, error) {
	var out []string
	for _, p := range []string{"twitch", "other"} {
		if _, ok := f.plain[p]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, p string) (db.Token, bool, error) {
	tok, ok := f.plain[p]
	return tok, ok, nil
}

func (f *fakeStore) Upsert(_ context.Context, p string, tok db.Token) error {
	if p == f.failFor {
		return errors.New("write failed")
	}
	f.sealed[p] = tok
	return nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMigrateTokens(t *testing.T) {
	ctx := context.Background()
	newStore := func() *fakeStore {
		return &fakeStore{
			plain:  map[string]db.Token{"twitch": {Access: "a", Refresh: "r"}, "other": {Access: "b"}},
			sealed: map[string]db.Token{},
		}
	}

	t.Run("dry run", func(t *testing.T) {
		s := newStore()
		n, err := migrateTokens(ctx, s, s, true, quiet)
		if err != nil || n != 2 || len(s.sealed) != 0 {
			t.Fatalf("n=%d err=%v sealed=%v", n, err, s.sealed)
		}
	})

	t.Run("migrates all", func(t *testing.T) {
		s := newStore()
		n, err := migrateTokens(ctx, s, s, false, quiet)
		if err != nil || n != 2 {
			t.Fatalf("n=%d err=%v", n, err)
		}
		if s.sealed["twitch"].Refresh != "r" {
			t.Errorf("sealed = %v", s.sealed)
		}
	})

	t.Run("continues past failures", func(t *testing.T) {
		s := newStore()
		s.failFor = "twitch"
		n, err := migrateTokens(ctx, s, s, false, quiet)
		if err == nil || n != 1 {
			t.Fatalf("n=%d err=%v", n, err)
		}
		if _, ok := s.sealed["other"]; !ok {
			t.Error("later provider not migrated")
		}
	})
}

func TestMigrateTokensPostgres(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	enc, err := crypto.NewAESEncryptor(base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
	if err != nil {
		t.Fatal(err)
	}
	provider := "test-migrate"
	t.Cleanup(func() { _, _ = database.Exec(`DELETE FROM oauth_tokens WHERE provider = $1`, provider) })

	plain := db.NewTokenStore(database, nil)
	sealed := db.NewTokenStore(database, enc)
	want := db.Token{Access: "access", Refresh: "refresh", Expiry: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}
	if err := plain.Upsert(ctx, provider, want); err != nil {
		t.Fatal(err)
	}
	if _, err := migrateTokens(ctx, plain, sealed, false, quiet); err != nil {
		t.Fatalf("migrateTokens: %v", err)
	}
	got, ok, err := sealed.Get(ctx, provider)
	if err != nil || !ok || got.Access != want.Access || got.Refresh != want.Refresh {
		t.Fatalf("Get = %+v, %v, %v", got, ok, err)
	}
	left, err := plain.PlaintextProviders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range left {
		if p == provider {
			t.Error("token still plaintext after migration")
		}
	}
}
