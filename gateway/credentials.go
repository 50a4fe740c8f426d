package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

// Scopes are the OAuth scopes the gateway needs.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveScope}

// ServiceAccount holds service-account credentials supplied field by field.
type ServiceAccount struct {
	Email        string
	PrivateKey   string
	PrivateKeyID string
	TokenURI     string
}

// JWTConfig builds the JWT flow config. Literal "\n" sequences in the key
// (as found in single-line env vars) are turned into newlines.
func (sa ServiceAccount) JWTConfig() (*jwt.Config, error) {
	if sa.Email == "" || sa.PrivateKey == "" {
		return nil, errors.New("service account email and private key are required")
	}
	tokenURL := sa.TokenURI
	if tokenURL == "" {
		tokenURL = google.JWTTokenURL
	}
	return &jwt.Config{
		Email:        sa.Email,
		PrivateKey:   []byte(strings.ReplaceAll(sa.PrivateKey, `\n`, "\n")),
		PrivateKeyID: sa.PrivateKeyID,
		Scopes:       Scopes,
		TokenURL:     tokenURL,
	}, nil
}

// JWTConfigFromFile reads a service-account JSON key file.
func JWTConfigFromFile(path string) (*jwt.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	cfg, err := google.JWTConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return cfg, nil
}

// TokenFromJWT returns a TokenFunc that performs a new JWT exchange on every
// call. The gateway decides when a new token is needed.
func TokenFromJWT(cfg *jwt.Config) TokenFunc {
	return func(ctx context.Context) (*oauth2.Token, error) {
		tok, err := cfg.TokenSource(ctx).Token()
		if err != nil {
			return nil, fmt.Errorf("jwt exchange: %w", err)
		}
		return tok, nil
	}
}
