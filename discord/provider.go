// Package discord is the OAuth2 client against Discord: it exchanges
// authorization codes, refreshes expired grants and fetches user profiles.
// It performs no retries and keeps no state; failures map onto the sentinel
// errors in errors.go so callers can tell the categories apart.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/profilecard-dev/profilecard/domain"
	"golang.org/x/oauth2"
)

// Endpoints are package variables so tests can point the provider at a local
// httptest server.
var (
	AuthorizeEndpoint = "https://discord.com/api/oauth2/authorize"
	TokenEndpoint     = "https://discord.com/api/oauth2/token"
	UserEndpoint      = "https://discord.com/api/users/@me"
)

// DefaultScopes is the minimum grant needed to render a card.
var DefaultScopes = []string{"identify"}

// Config holds the OAuth2 application settings issued by the Discord developer
// portal.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// Grant is the credential fragment returned by the token endpoint: the tokens,
// the granted scope and the absolute expiry (issuance time + reported lifetime).
type Grant struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    time.Time
}

// Provider implements the three network operations of the OAuth client.
type Provider struct {
	config Config
}

// NewProvider validates the application settings and returns a Provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURI == "" {
		return nil, ErrProviderMisconfigured
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	return &Provider{config: cfg}, nil
}

func (p *Provider) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		RedirectURL:  p.config.RedirectURI,
		Scopes:       p.config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthorizeEndpoint,
			TokenURL:  TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL builds the authorization URL the end-user is redirected to.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth2Config().AuthCodeURL(state)
}

// ExchangeCode redeems a one-time authorization code for a grant.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (*Grant, error) {
	tok, err := p.oauth2Config().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return grantFromToken(tok), nil
}

// Refresh obtains a new grant from a refresh token. Discord rotates refresh
// tokens, so the returned grant usually carries a new one.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	src := p.oauth2Config().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return grantFromToken(tok), nil
}

// FetchProfile calls the /users/@me endpoint with a bearer token.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (*domain.Profile, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	resp, err := client.Get(UserEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrProfileFetchFailed, resp.StatusCode, string(body))
	}

	var profile domain.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrProfileFetchFailed, err)
	}
	return &profile, nil
}

func grantFromToken(tok *oauth2.Token) *Grant {
	scope, _ := tok.Extra("scope").(string)
	return &Grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scope:        scope,
		ExpiresAt:    tok.Expiry,
	}
}
