// Package twitchapi holds the Twitch OAuth configuration for the bot account
// and the few Helix calls the bot makes.
package twitchapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Endpoint is Twitch's OAuth endpoint. Twitch expects client credentials in
// the form body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://id.twitch.tv/oauth2/authorize",
	TokenURL:  "https://id.twitch.tv/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Provider is the oauth_tokens key for the bot account's user token.
const Provider = "twitch"

// DefaultScopes lets the bot read and write chat and send whispers.
var DefaultScopes = []string{"chat:read", "chat:edit", "user:manage:whispers"}

// ParseScopes splits a comma or space separated scope list.
func ParseScopes(s string) []string {
	return strings.Fields(strings.ReplaceAll(s, ",", " "))
}

// UserConfig is the authorization-code flow config for the bot account.
func UserConfig(clientID, clientSecret, redirectURI string, scopes []string) (*oauth2.Config, error) {
	if clientID == "" || redirectURI == "" {
		return nil, errors.New("missing clientID or redirectURI")
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint:     Endpoint,
	}, nil
}

// Refresh exchanges a refresh token for a new token.
func Refresh(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	if cfg.ClientSecret == "" || refreshToken == "" {
		return nil, errors.New("missing clientSecret/refreshToken")
	}
	// an expired token forces the source to use the refresh grant
	tok := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	return cfg.TokenSource(ctx, tok).Token()
}

// Expiry returns the token's expiry, assuming one hour when Twitch omits it.
func Expiry(tok *oauth2.Token) time.Time {
	if tok.Expiry.IsZero() {
		return time.Now().Add(60 * time.Minute)
	}
	return tok.Expiry
}

// AppTokenSource returns a cached client-credentials (app access) token
// source. App tokens work for Helix but not for chat.
func AppTokenSource(ctx context.Context, clientID, clientSecret, tokenURL string) oauth2.TokenSource {
	if tokenURL == "" {
		tokenURL = Endpoint.TokenURL
	}
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return oauth2.ReuseTokenSource(nil, cc.TokenSource(ctx))
}

// GrantedScopes returns the space separated scopes Twitch granted with tok.
// Twitch sends scope as a JSON array.
func GrantedScopes(tok *oauth2.Token) string {
	switch v := tok.Extra("scope").(type) {
	case string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return strings.Join(out, " ")
	}
	return ""
}
