package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/battlesheet/crypto"
)

// Token is a stored OAuth token.
type Token struct {
	Access  string
	Refresh string
	Expiry  time.Time
	Scope   string
}

// TokenStore keeps OAuth tokens in oauth_tokens. With an encryptor, tokens
// are written encrypted (encryption_version=1); plaintext rows
// (encryption_version=0) are still readable.
type TokenStore struct {
	db  *sql.DB
	enc crypto.Encryptor
}

// NewTokenStore returns a store. A nil enc stores tokens in plaintext.
func NewTokenStore(db *sql.DB, enc crypto.Encryptor) *TokenStore {
	return &TokenStore{db: db, enc: enc}
}

// Upsert stores or replaces the token for provider.
func (s *TokenStore) Upsert(ctx context.Context, provider string, tok Token) error {
	version, keyID := 0, ""
	access, refresh := tok.Access, tok.Refresh
	if s.enc != nil {
		version, keyID = 1, "default"
		var err error
		if access, err = crypto.EncryptString(s.enc, tok.Access); err != nil {
			return fmt.Errorf("encrypt access token: %w", err)
		}
		if refresh, err = crypto.EncryptString(s.enc, tok.Refresh); err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens(provider, access_token, refresh_token, expires_at, scope, encryption_version, encryption_key_id, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,NOW())
		 ON CONFLICT(provider) DO UPDATE SET
		   access_token=EXCLUDED.access_token,
		   refresh_token=EXCLUDED.refresh_token,
		   expires_at=EXCLUDED.expires_at,
		   scope=EXCLUDED.scope,
		   encryption_version=EXCLUDED.encryption_version,
		   encryption_key_id=EXCLUDED.encryption_key_id,
		   updated_at=NOW()`,
		provider, access, refresh, tok.Expiry, strings.TrimSpace(tok.Scope), version, keyID)
	return err
}

// Get returns the token for provider; ok is false when none is stored.
func (s *TokenStore) Get(ctx context.Context, provider string) (tok Token, ok bool, err error) {
	var (
		version int
		access  sql.NullString
		refresh sql.NullString
		expiry  sql.NullTime
		scope   sql.NullString
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, scope, COALESCE(encryption_version, 0)
		 FROM oauth_tokens WHERE provider = $1`, provider).Scan(&access, &refresh, &expiry, &scope, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, err
	}
	tok = Token{Access: access.String, Refresh: refresh.String, Expiry: expiry.Time, Scope: scope.String}
	if version == 1 {
		if s.enc == nil {
			return Token{}, false, errors.New("token is encrypted but ENCRYPTION_KEY not configured")
		}
		if tok.Access, err = crypto.DecryptString(s.enc, tok.Access); err != nil {
			return Token{}, false, fmt.Errorf("decrypt access token: %w", err)
		}
		if tok.Refresh, err = crypto.DecryptString(s.enc, tok.Refresh); err != nil {
			return Token{}, false, fmt.Errorf("decrypt refresh token: %w", err)
		}
	}
	return tok, true, nil
}

// PlaintextProviders lists providers whose tokens are stored unencrypted.
func (s *TokenStore) PlaintextProviders(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider FROM oauth_tokens WHERE COALESCE(encryption_version, 0) = 0 ORDER BY provider`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
